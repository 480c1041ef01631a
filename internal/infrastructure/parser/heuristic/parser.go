package heuristic

import (
	"strings"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// Parser extracts skills, sections and years of experience with regular
// expressions and a skill vocabulary. It is deterministic for a fixed
// reference year and never fails.
type Parser struct {
	vocab         *Vocabulary
	referenceYear int
}

type Option func(*Parser)

// WithReferenceYear fixes the year that "present" resolves to.
func WithReferenceYear(year int) Option {
	return func(p *Parser) {
		if year > 0 {
			p.referenceYear = year
		}
	}
}

func New(vocab *Vocabulary, opts ...Option) *Parser {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	p := &Parser{vocab: vocab, referenceYear: time.Now().Year()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Parse(text string) domain.FeatureSet {
	if strings.TrimSpace(text) == "" {
		return domain.FeatureSet{Skills: []string{}}
	}
	lower := strings.ToLower(text)
	return domain.FeatureSet{
		Skills:          p.vocab.Match(normalizeTerm(lower)),
		ExperienceYears: experienceYears(lower, p.referenceYear),
		Sections:        splitSections(text),
	}
}
