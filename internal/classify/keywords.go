package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/reception/internal/domain/model"
)

// DefaultKeywords — ключевые слова категорий по умолчанию.
// Сравнение регистронезависимое, по вхождению подстроки.
var DefaultKeywords = map[model.Category][]string{
	model.CategoryUdostoverenie: {"удостоверение", "ID"},
	model.CategoryENT: {
		"сертификат",
		"ТЕСТИРОВАНИЯ",
		"ТЕСТІЛЕУ",
		"ТЕСТИРУЕМОГО",
		"Набранные баллы",
	},
	model.CategoryLgota:  {"льгота", "инвалид", "многодетная"},
	model.CategoryDiplom: {"диплом", "аттестат", "бакалавр", "магистр"},
	model.CategoryPrivivka: {
		"прививка",
		"прививочный паспорт",
		"вакцинирование",
		"инфекция",
	},
	model.CategoryMedSpravka: {
		"медицинская справка",
		"справка",
		"медицинский",
		"туберкулез",
		"полиомелит",
		"гепатит",
		"вич",
		"спид",
		"карта ребенка",
		"Дегельминтизация",
		"дегельминтизация",
		"клинический анализ крови",
		"анализ крови",
		"анализ мочи",
		"моча",
		"кровь",
		"флюорография",
		"флюорографическое обследование",
		"флюорография легких",
	},
}

// keywordsFile — формат YAML-файла переопределения ключевых слов:
//
//	categories:
//	  Diplom: ["диплом", "аттестат"]
type keywordsFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadKeywords читает YAML-файл и накладывает его на DefaultKeywords.
// Категории, отсутствующие в файле, сохраняют ключевые слова по умолчанию.
// Неизвестная категория в файле — ошибка.
func LoadKeywords(path string) (map[model.Category][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла ключевых слов %s: %w", path, err)
	}

	var kf keywordsFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла ключевых слов %s: %w", path, err)
	}

	result := make(map[model.Category][]string, len(DefaultKeywords))
	for c, kws := range DefaultKeywords {
		result[c] = kws
	}

	for name, kws := range kf.Categories {
		c, ok := model.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("файл ключевых слов %s: неизвестная категория %q", path, name)
		}
		result[c] = kws
	}

	return result, nil
}
