package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/echoseed/echoseed/pkg/models"
)

// Store is the immutable catalog snapshot. It is loaded once at startup and
// shared freely across requests without locking; nothing mutates it after
// Load returns.
type Store struct {
	tracks       []models.Track
	byID         map[string]int
	byNameArtist map[string]int // first occurrence wins on duplicates
}

// ListOptions narrows and orders the browsing read path. All fields are
// optional; SortBy defaults to popularity.
type ListOptions struct {
	Genre  string
	Year   int
	Search string
	SortBy string
	Limit  int
	Offset int
}

var featureColumns = func() map[string]int {
	cols := make(map[string]int, models.NumFeatures)
	for dim, name := range models.FeatureNames {
		cols[name] = dim
	}
	return cols
}()

// Load reads the track dataset from a CSV file with a header row. An
// unreadable or empty dataset is an error: without a catalog the process can
// never serve recommendations.
func Load(path string, logger *logrus.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog dataset: %w", err)
	}
	defer f.Close()

	store, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog dataset %s: %w", path, err)
	}

	logger.WithFields(logrus.Fields{
		"path":   path,
		"tracks": len(store.tracks),
	}).Info("Catalog snapshot loaded")

	return store, nil
}

func parse(r io.Reader) (*Store, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("dataset has no id column")
	}

	var tracks []models.Track
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		track := models.Track{
			ID:         field(record, cols, "id"),
			Name:       field(record, cols, "track_name"),
			Artist:     field(record, cols, "artist_name"),
			Genre:      field(record, cols, "genre"),
			Year:       intField(record, cols, "year"),
			Popularity: intField(record, cols, "popularity"),
		}
		if track.ID == "" {
			continue
		}

		for name, dim := range featureColumns {
			raw := field(record, cols, name)
			if raw == "" {
				continue
			}
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				track.Features.Set(dim, v)
			}
		}

		tracks = append(tracks, track)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("dataset contains no tracks")
	}

	return NewFromTracks(tracks), nil
}

// NewFromTracks builds a snapshot from already-materialized tracks,
// preserving insertion order. Later duplicates of an id or (name, artist)
// pair are shadowed by the first occurrence.
func NewFromTracks(tracks []models.Track) *Store {
	s := &Store{
		tracks:       tracks,
		byID:         make(map[string]int, len(tracks)),
		byNameArtist: make(map[string]int, len(tracks)),
	}
	for i, t := range tracks {
		if _, exists := s.byID[t.ID]; !exists {
			s.byID[t.ID] = i
		}
		key := nameArtistKey(t.Name, t.Artist)
		if _, exists := s.byNameArtist[key]; !exists {
			s.byNameArtist[key] = i
		}
	}
	return s
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func intField(record []string, cols map[string]int, name string) int {
	raw := field(record, cols, name)
	if raw == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v)
	}
	return 0
}

// nameArtistKey normalizes a (name, artist) tuple for case-insensitive
// matching. NFC keeps composed and decomposed Unicode spellings of the same
// title on one key.
func nameArtistKey(name, artist string) string {
	n := strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
	a := strings.ToLower(strings.TrimSpace(norm.NFC.String(artist)))
	return n + "\x00" + a
}

// Size returns the number of tracks in the snapshot.
func (s *Store) Size() int {
	return len(s.tracks)
}

// At returns the track at a catalog position. The position is the stable
// insertion order the engine's tie-breaking relies on.
func (s *Store) At(i int) models.Track {
	return s.tracks[i]
}

// ByID looks a track up by its catalog identifier.
func (s *Store) ByID(id string) (models.Track, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Track{}, false
	}
	return s.tracks[i], true
}

// IndexByID returns the catalog position for an id.
func (s *Store) IndexByID(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// ByNameArtist is the fuzzy fallback: a case-insensitive exact match on the
// normalized (name, artist) tuple. Duplicates resolve to the first loaded
// track; that tie-break is deliberate.
func (s *Store) ByNameArtist(name, artist string) (models.Track, bool) {
	i, ok := s.byNameArtist[nameArtistKey(name, artist)]
	if !ok {
		return models.Track{}, false
	}
	return s.tracks[i], true
}

// List applies filters, sorting and pagination over the snapshot and returns
// the page plus the total count of matches.
func (s *Store) List(opts ListOptions) ([]models.Track, int) {
	genre := strings.ToLower(strings.TrimSpace(opts.Genre))
	search := strings.ToLower(strings.TrimSpace(opts.Search))

	matched := make([]int, 0, len(s.tracks))
	for i, t := range s.tracks {
		if genre != "" && strings.ToLower(t.Genre) != genre {
			continue
		}
		if opts.Year != 0 && t.Year != opts.Year {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(strings.ToLower(t.Artist), search) {
			continue
		}
		matched = append(matched, i)
	}

	s.sortIndices(matched, opts.SortBy)

	total := len(matched)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}

	page := make([]models.Track, 0, end-offset)
	for _, i := range matched[offset:end] {
		page = append(page, s.tracks[i])
	}
	return page, total
}

// PopularTracks is the cold-start fallback list: the catalog ordered by
// descending popularity.
func (s *Store) PopularTracks(limit int) []models.Track {
	tracks, _ := s.List(ListOptions{SortBy: "popularity", Limit: limit})
	return tracks
}

func (s *Store) sortIndices(indices []int, sortBy string) {
	var less func(a, b models.Track) bool
	switch sortBy {
	case "name":
		less = func(a, b models.Track) bool { return a.Name < b.Name }
	case "artist":
		less = func(a, b models.Track) bool { return a.Artist < b.Artist }
	case "year":
		less = func(a, b models.Track) bool { return a.Year > b.Year }
	default: // popularity
		less = func(a, b models.Track) bool { return a.Popularity > b.Popularity }
	}

	// Stable keeps catalog insertion order for equal keys, so pagination is
	// deterministic across requests.
	sort.SliceStable(indices, func(x, y int) bool {
		return less(s.tracks[indices[x]], s.tracks[indices[y]])
	})
}
