package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// profile is one workload description. It can be read from a JSON file
// with comments (--config) and is then overridden by explicit flags.
type profile struct {
	Buckets    int    `json:"buckets"`
	MaxEntries int    `json:"max_entries"`
	Policy     string `json:"policy"`

	Workers  int      `json:"workers"`
	Duration duration `json:"duration"`
	Reads    int      `json:"reads"`
	Deletes  int      `json:"deletes"`

	Keys    int     `json:"keys"`
	ZipfS   float64 `json:"zipf_s"`
	ZipfV   float64 `json:"zipf_v"`
	Seed    int64   `json:"seed"`
	Preload int     `json:"preload"`
}

// duration accepts "10s" style strings in profiles.
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func defaultProfile() profile {
	return profile{
		MaxEntries: 100_000,
		Policy:     "clock",
		Workers:    2 * runtime.GOMAXPROCS(0),
		Duration:   duration(10 * time.Second),
		Reads:      80,
		Deletes:    2,
		Keys:       1_000_000,
		ZipfS:      1.1,
		ZipfV:      1.0,
		Seed:       time.Now().UnixNano(),
	}
}

// loadProfile overlays the file at path onto p. Keys absent from the file
// keep their current value.
func loadProfile(path string, p *profile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := json.Unmarshal(std, p); err != nil {
		return fmt.Errorf("decode profile %s: %w", path, err)
	}
	return nil
}

// bindFlags registers the workload flags on fs, writing into p.
func bindFlags(fs *flag.FlagSet, p *profile) {
	fs.IntVar(&p.Buckets, "buckets", p.Buckets, "hash table buckets (0 = NextPow2(max))")
	fs.IntVar(&p.MaxEntries, "max", p.MaxEntries, "entry limit (0 = unbounded)")
	fs.StringVar(&p.Policy, "policy", p.Policy, "eviction policy: clock | lru")

	fs.IntVar(&p.Workers, "workers", p.Workers, "number of worker goroutines")
	fs.DurationVar((*time.Duration)(&p.Duration), "duration", time.Duration(p.Duration), "benchmark duration")
	fs.IntVar(&p.Reads, "reads", p.Reads, "read percentage [0..100]")
	fs.IntVar(&p.Deletes, "deletes", p.Deletes, "delete percentage [0..100], taken from the writes")

	fs.IntVar(&p.Keys, "keys", p.Keys, "keyspace size")
	fs.Float64Var(&p.ZipfS, "zipf-s", p.ZipfS, "Zipf s > 1 (skew)")
	fs.Float64Var(&p.ZipfV, "zipf-v", p.ZipfV, "Zipf v >= 1")
	fs.Int64Var(&p.Seed, "seed", p.Seed, "random seed")
	fs.IntVar(&p.Preload, "preload", p.Preload, "preload entries (0 = max/2)")
}

// resolve merges defaults, the optional profile file and every flag that
// was set explicitly, in that order.
func resolve(fs *flag.FlagSet, flags profile, path string) (profile, error) {
	p := flags
	if path != "" {
		p = defaultProfile()
		p.Seed = flags.Seed
		if err := loadProfile(path, &p); err != nil {
			return profile{}, err
		}
		fs.Visit(func(f *flag.Flag) { overlayFlag(&p, flags, f.Name) })
	}
	return p, p.validate()
}

func overlayFlag(p *profile, flags profile, name string) {
	switch name {
	case "buckets":
		p.Buckets = flags.Buckets
	case "max":
		p.MaxEntries = flags.MaxEntries
	case "policy":
		p.Policy = flags.Policy
	case "workers":
		p.Workers = flags.Workers
	case "duration":
		p.Duration = flags.Duration
	case "reads":
		p.Reads = flags.Reads
	case "deletes":
		p.Deletes = flags.Deletes
	case "keys":
		p.Keys = flags.Keys
	case "zipf-s":
		p.ZipfS = flags.ZipfS
	case "zipf-v":
		p.ZipfV = flags.ZipfV
	case "seed":
		p.Seed = flags.Seed
	case "preload":
		p.Preload = flags.Preload
	}
}

func (p profile) validate() error {
	switch {
	case p.Reads < 0 || p.Reads > 100:
		return fmt.Errorf("reads must be in [0,100], got %d", p.Reads)
	case p.Deletes < 0 || p.Reads+p.Deletes > 100:
		return fmt.Errorf("reads+deletes must be <= 100, got %d+%d", p.Reads, p.Deletes)
	case p.Keys < 2:
		return fmt.Errorf("keys must be >= 2, got %d", p.Keys)
	case p.ZipfS <= 1 || p.ZipfV < 1:
		return fmt.Errorf("zipf needs s > 1 and v >= 1, got s=%g v=%g", p.ZipfS, p.ZipfV)
	case p.Policy != "clock" && p.Policy != "lru":
		return fmt.Errorf("unknown policy %q (use clock or lru)", p.Policy)
	}
	return nil
}
