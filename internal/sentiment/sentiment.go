package sentiment

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"vela/internal/logger"
)

// Provider yields a directional bias for a symbol in [-1, 1].
// 0 is neutral; positive favors longs.
type Provider interface {
	Name() string
	Bias(ctx context.Context, symbol string) (float64, error)
}

// Noop always reports neutral sentiment. Used when no feed is configured.
type Noop struct{}

func (Noop) Name() string                                  { return "noop" }
func (Noop) Bias(context.Context, string) (float64, error) { return 0, nil }

// FileProvider reads sentiment scores from a JSON document of the shape
//
//	{"AAPL": {"scores": [0.2, -0.1, 0.4]}, ...}
//
// and reports the average of the most recent window entries. The document is
// re-read at most once per TTL.
type FileProvider struct {
	path   string
	window int
	ttl    time.Duration

	mu       sync.Mutex
	loadedAt time.Time
	doc      gjson.Result
}

func NewFileProvider(path string, window int, ttl time.Duration) *FileProvider {
	if window <= 0 {
		window = 5
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FileProvider{path: path, window: window, ttl: ttl}
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Bias(_ context.Context, symbol string) (float64, error) {
	doc, err := p.document()
	if err != nil {
		return 0, err
	}
	scores := doc.Get(strings.ToUpper(symbol) + ".scores")
	if !scores.Exists() || !scores.IsArray() {
		return 0, nil
	}
	arr := scores.Array()
	if len(arr) > p.window {
		arr = arr[len(arr)-p.window:]
	}
	if len(arr) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range arr {
		sum += v.Float()
	}
	return clampBias(sum / float64(len(arr))), nil
}

func (p *FileProvider) document() (gjson.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loadedAt.IsZero() && time.Since(p.loadedAt) < p.ttl {
		return p.doc, nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("sentiment payload %s is not valid JSON", p.path)
	}
	p.doc = gjson.ParseBytes(data)
	p.loadedAt = time.Now()
	return p.doc, nil
}

// Service wraps a provider with a per-symbol TTL cache and degrades any
// failure to a neutral bias. Scoring must never stall on the sentiment feed.
type Service struct {
	provider Provider
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cachedBias
}

type cachedBias struct {
	bias float64
	at   time.Time
}

func NewService(provider Provider, ttl time.Duration) *Service {
	if provider == nil {
		provider = Noop{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{provider: provider, ttl: ttl, cache: make(map[string]cachedBias)}
}

// Bias never returns an error: failures are logged and neutral is reported.
func (s *Service) Bias(ctx context.Context, symbol string) float64 {
	key := strings.ToUpper(symbol)
	s.mu.Lock()
	if c, ok := s.cache[key]; ok && time.Since(c.at) < s.ttl {
		s.mu.Unlock()
		return c.bias
	}
	s.mu.Unlock()

	bias, err := s.provider.Bias(ctx, symbol)
	if err != nil {
		logger.Warnf("sentiment provider %s failed for %s, using neutral: %v", s.provider.Name(), symbol, err)
		bias = 0
	}
	bias = clampBias(bias)
	s.mu.Lock()
	s.cache[key] = cachedBias{bias: bias, at: time.Now()}
	s.mu.Unlock()
	return bias
}

func clampBias(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
