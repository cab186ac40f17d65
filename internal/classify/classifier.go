// Пакет classify — классификация документов по ключевым словам.
//
// Для каждой категории считается количество её ключевых слов, входящих
// в текст. Лучшая категория меняется только при строго большем числе
// совпадений, поэтому при равенстве побеждает категория, идущая раньше
// в model.Categories. Результат кэшируется в LRU-кэше экземпляра.
package classify

import (
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/reception/internal/domain/model"
)

// DefaultCacheSize — размер кэша результатов по умолчанию.
const DefaultCacheSize = 256

// Prometheus-метрики кэша классификации.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_classify_cache_hits_total",
		Help: "Общее количество попаданий в кэш классификации.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_classify_cache_misses_total",
		Help: "Общее количество промахов кэша классификации.",
	})
)

// keywordSet — ключевые слова одной категории в нижнем регистре.
type keywordSet struct {
	category model.Category
	keywords []string
}

// Classifier — классификатор с собственным кэшем результатов.
// Безопасен для конкурентного использования.
type Classifier struct {
	sets   []keywordSet
	cache  *lru.Cache[string, model.Category]
	logger *slog.Logger
}

// New создаёт классификатор. keywords — ключевые слова по категориям
// (категории без ключевых слов никогда не выбираются).
// cacheSize <= 0 отключает кэш.
func New(keywords map[model.Category][]string, cacheSize int, logger *slog.Logger) (*Classifier, error) {
	c := &Classifier{
		logger: logger.With(slog.String("component", "classifier")),
	}

	for _, category := range model.Categories {
		kws := keywords[category]
		lowered := make([]string, 0, len(kws))
		for _, kw := range kws {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				lowered = append(lowered, kw)
			}
		}
		c.sets = append(c.sets, keywordSet{category: category, keywords: lowered})
	}

	if cacheSize > 0 {
		cache, err := lru.New[string, model.Category](cacheSize)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}

	return c, nil
}

// Classify возвращает категорию текста. Пустой текст и текст без
// совпадений — CategoryUnclassified.
func (c *Classifier) Classify(text string) model.Category {
	if c.cache != nil {
		if category, ok := c.cache.Get(text); ok {
			cacheHitsTotal.Inc()
			return category
		}
		cacheMissesTotal.Inc()
	}

	category := c.score(text)

	if c.cache != nil {
		c.cache.Add(text, category)
	}
	return category
}

// score выполняет подсчёт совпадений без кэша.
func (c *Classifier) score(text string) model.Category {
	if text == "" {
		return model.CategoryUnclassified
	}

	lower := strings.ToLower(text)
	best := model.CategoryUnclassified
	maxHits := 0

	for _, set := range c.sets {
		hits := 0
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		// Строгое сравнение: при равенстве остаётся более ранняя категория
		if hits > maxHits {
			maxHits = hits
			best = set.category
			c.logger.Debug("Новая лучшая категория",
				slog.String("category", string(set.category)),
				slog.Int("hits", hits),
			)
		}
	}

	return best
}

// CacheLen возвращает текущее число записей в кэше.
func (c *Classifier) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
