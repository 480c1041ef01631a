package heuristic

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is a canonical skill name and the spellings that map to it.
type Skill struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type vocabularyFile struct {
	Skills []Skill `yaml:"skills"`
}

// Vocabulary is an immutable, compiled set of skill matchers.
type Vocabulary struct {
	matchers []aliasMatcher
	names    []string
}

type aliasMatcher struct {
	canonical string
	re        *regexp.Regexp
}

func NewVocabulary(skills []Skill) (*Vocabulary, error) {
	v := &Vocabulary{}
	seen := map[string]struct{}{}
	for _, s := range skills {
		name := normalizeTerm(s.Name)
		if name == "" {
			return nil, fmt.Errorf("skill with empty name")
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			v.names = append(v.names, name)
		}
		for _, alias := range append([]string{name}, s.Aliases...) {
			alias = normalizeTerm(alias)
			if alias == "" {
				continue
			}
			re, err := regexp.Compile(`(^|[^a-z0-9+#])` + regexp.QuoteMeta(alias) + `($|[^a-z0-9+#])`)
			if err != nil {
				return nil, fmt.Errorf("compile alias %q: %w", alias, err)
			}
			v.matchers = append(v.matchers, aliasMatcher{canonical: name, re: re})
		}
	}
	sort.Strings(v.names)
	return v, nil
}

// LoadVocabularyFile reads a YAML document of the form
//
//	skills:
//	  - name: postgresql
//	    aliases: [postgres, psql]
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	var f vocabularyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode vocabulary file: %w", err)
	}
	if len(f.Skills) == 0 {
		return nil, fmt.Errorf("vocabulary file %s lists no skills", path)
	}
	return NewVocabulary(f.Skills)
}

// Names lists canonical skills in sorted order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Match returns the canonical skills found in normalized text, sorted and unique.
func (v *Vocabulary) Match(text string) []string {
	found := map[string]struct{}{}
	for _, m := range v.matchers {
		if _, ok := found[m.canonical]; ok {
			continue
		}
		if m.re.MatchString(text) {
			found[m.canonical] = struct{}{}
		}
	}
	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalizeTerm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DefaultVocabulary covers programming, data, ML, cloud and engineering terms.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(defaultSkills)
	if err != nil {
		panic(err)
	}
	return v
}

var defaultSkills = []Skill{
	{Name: "python"},
	{Name: "java"},
	{Name: "c++", Aliases: []string{"cpp"}},
	{Name: "javascript", Aliases: []string{"js"}},
	{Name: "typescript"},
	{Name: "go", Aliases: []string{"golang"}},
	{Name: "bash", Aliases: []string{"shell scripting"}},
	{Name: "shell"},
	{Name: "linux"},

	{Name: "data science"},
	{Name: "data analysis", Aliases: []string{"data analytics"}},
	{Name: "pandas"},
	{Name: "numpy"},
	{Name: "scipy"},
	{Name: "matplotlib"},
	{Name: "seaborn"},
	{Name: "plotly"},
	{Name: "jupyter", Aliases: []string{"jupyter notebook"}},

	{Name: "machine learning", Aliases: []string{"ml"}},
	{Name: "scikit-learn", Aliases: []string{"sklearn", "scikit learn"}},
	{Name: "supervised learning"},
	{Name: "unsupervised learning"},
	{Name: "classification"},
	{Name: "regression"},
	{Name: "clustering"},
	{Name: "feature engineering"},
	{Name: "model evaluation"},

	{Name: "deep learning"},
	{Name: "neural networks", Aliases: []string{"neural network"}},
	{Name: "tensorflow", Aliases: []string{"tensor flow"}},
	{Name: "keras"},
	{Name: "pytorch", Aliases: []string{"torch"}},
	{Name: "cnn"},
	{Name: "rnn"},
	{Name: "lstm"},
	{Name: "transformers", Aliases: []string{"transformer"}},

	{Name: "nlp", Aliases: []string{"natural language processing"}},
	{Name: "tokenization"},
	{Name: "lemmatization"},
	{Name: "embeddings", Aliases: []string{"word embeddings"}},
	{Name: "sentence transformers", Aliases: []string{"sentence-transformers"}},
	{Name: "spacy"},
	{Name: "nltk"},
	{Name: "bert"},
	{Name: "gpt"},
	{Name: "llm", Aliases: []string{"llms", "large language models"}},

	{Name: "computer vision"},
	{Name: "opencv"},
	{Name: "image processing"},
	{Name: "object detection"},
	{Name: "image classification"},
	{Name: "yolo"},
	{Name: "resnet"},

	{Name: "sql"},
	{Name: "postgresql", Aliases: []string{"postgres"}},
	{Name: "mysql"},
	{Name: "sqlite"},
	{Name: "nosql"},
	{Name: "mongodb", Aliases: []string{"mongo"}},
	{Name: "redis"},
	{Name: "pgvector"},

	{Name: "big data"},
	{Name: "spark", Aliases: []string{"apache spark"}},
	{Name: "pyspark"},
	{Name: "hadoop"},
	{Name: "kafka", Aliases: []string{"apache kafka"}},

	{Name: "fastapi"},
	{Name: "flask"},
	{Name: "django"},
	{Name: "rest api", Aliases: []string{"restful api", "rest apis", "restful apis"}},
	{Name: "grpc"},

	{Name: "mlops"},
	{Name: "docker"},
	{Name: "docker compose", Aliases: []string{"docker-compose"}},
	{Name: "kubernetes", Aliases: []string{"k8s"}},
	{Name: "ci/cd", Aliases: []string{"cicd"}},
	{Name: "github actions"},
	{Name: "gitlab ci"},
	{Name: "mlflow"},
	{Name: "model deployment"},
	{Name: "monitoring"},

	{Name: "aws", Aliases: []string{"amazon web services"}},
	{Name: "s3"},
	{Name: "ec2"},
	{Name: "lambda", Aliases: []string{"aws lambda"}},
	{Name: "gcp", Aliases: []string{"google cloud", "google cloud platform"}},
	{Name: "azure"},

	{Name: "software engineering"},
	{Name: "system design"},
	{Name: "data structures"},
	{Name: "algorithms"},
	{Name: "oop", Aliases: []string{"object oriented programming", "object-oriented programming"}},
	{Name: "version control"},
	{Name: "git"},

	{Name: "statistics"},
	{Name: "probability"},
	{Name: "linear algebra"},
	{Name: "optimization"},
	{Name: "hypothesis testing"},
}
