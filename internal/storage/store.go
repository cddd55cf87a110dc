package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
	"github.com/san-kum/glitchload/internal/loop"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Transform   string             `json:"transform"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	IntervalMs  int64              `json:"interval_ms"`
	MaxInFlight int                `json:"max_in_flight"`
	Ticks       int                `json:"ticks"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Tick is one row of ticks.csv.
type Tick struct {
	Seq         uint64            `json:"seq"`
	ScheduledMs float64           `json:"scheduled_ms"`
	LatencyMs   float64           `json:"latency_ms"`
	Outcome     loop.Outcome      `json:"outcome"`
	Params      glitch.Parameters `json:"params"`
	Bytes       int               `json:"bytes"`
}

var tickHeader = []string{"seq", "scheduled_ms", "latency_ms", "outcome", "seed", "quality", "amount", "iterations", "bytes"}

// Save writes metadata.json and ticks.csv under a fresh run directory. The
// run id and tick count in meta are filled in.
func (s *Store) Save(meta RunMetadata, reports []loop.TickReport) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runID := meta.ID
	if runID == "" {
		runID = fmt.Sprintf("%s_%d", meta.Transform, meta.Timestamp.UnixNano())
	}
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Ticks = len(reports)

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "ticks.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(tickHeader); err != nil {
		return "", err
	}

	var origin time.Time
	if len(reports) > 0 {
		origin = reports[0].Scheduled
	}
	for _, r := range reports {
		row := []string{
			strconv.FormatUint(r.Seq, 10),
			formatMs(r.Scheduled.Sub(origin)),
			formatMs(r.Latency),
			r.Outcome.String(),
			strconv.FormatFloat(r.Params.Seed, 'f', 6, 64),
			strconv.FormatFloat(r.Params.Quality, 'f', 6, 64),
			strconv.FormatFloat(r.Params.Amount, 'f', 6, 64),
			strconv.Itoa(r.Params.Iterations),
			strconv.Itoa(r.Bytes),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

func formatMs(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTicks reads ticks.csv back. Malformed rows are skipped.
func (s *Store) LoadTicks(runID string) ([]Tick, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "ticks.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Tick{}, nil
	}

	ticks := make([]Tick, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(tickHeader) {
			continue
		}
		tick, err := parseTick(rec)
		if err != nil {
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

func parseTick(rec []string) (Tick, error) {
	var t Tick
	var err error
	if t.Seq, err = strconv.ParseUint(rec[0], 10, 64); err != nil {
		return t, err
	}
	if t.ScheduledMs, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return t, err
	}
	if t.LatencyMs, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return t, err
	}
	if t.Outcome, err = loop.ParseOutcome(rec[3]); err != nil {
		return t, err
	}
	if t.Params.Seed, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return t, err
	}
	if t.Params.Quality, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return t, err
	}
	if t.Params.Amount, err = strconv.ParseFloat(rec[6], 64); err != nil {
		return t, err
	}
	if t.Params.Iterations, err = strconv.Atoi(rec[7]); err != nil {
		return t, err
	}
	if t.Bytes, err = strconv.Atoi(rec[8]); err != nil {
		return t, err
	}
	return t, nil
}

// Delivered returns the arrival times (scheduled + latency, in ms) of the
// delivered ticks, in order.
func Delivered(ticks []Tick) []float64 {
	out := make([]float64, 0, len(ticks))
	for _, t := range ticks {
		if t.Outcome == loop.OutcomeDelivered {
			out = append(out, t.ScheduledMs+t.LatencyMs)
		}
	}
	return out
}
