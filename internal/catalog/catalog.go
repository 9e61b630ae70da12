package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/judge/literal"
)

//go:embed questions.yaml
var defaultCatalog []byte

type (
	document struct {
		Challenges []challengeDoc `yaml:"challenges"`
		Questions  []questionDoc  `yaml:"questions"`
	}

	challengeDoc struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	}

	questionDoc struct {
		ID          int64  `yaml:"id"`
		ChallengeID string `yaml:"challenge_id"`
		Kind        string `yaml:"kind"`
		Title       string `yaml:"title"`
		Level       string `yaml:"level"`
		Description string `yaml:"description"`
		Remarks     string `yaml:"remarks"`
		Points      int    `yaml:"points"`
		TimeLimit   int    `yaml:"time_limit_seconds"`

		// declarative
		Schema       string `yaml:"schema"`
		Query        string `yaml:"query"`
		StarterQuery string `yaml:"starter_query"`

		// interpreted, compiled
		Language    string    `yaml:"language"`
		StarterCode string    `yaml:"starter_code"`
		Tests       []testDoc `yaml:"tests"`

		// choice
		Options      []string `yaml:"options"`
		CorrectIndex *int     `yaml:"correct_index"`
	}

	testDoc struct {
		Name     string `yaml:"name"`
		Args     []any  `yaml:"args"`
		Expected any    `yaml:"expected"`
	}
)

// Catalog is an immutable set of challenges and their questions.
type Catalog struct {
	challenges []domain.Challenge
	byID       map[string]int
	questions  map[int64]domain.Question
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates a YAML catalog.
func Parse(b []byte) (*Catalog, error) {
	var doc document

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	c := &Catalog{
		byID:      make(map[string]int, len(doc.Challenges)),
		questions: make(map[int64]domain.Question, len(doc.Questions)),
	}

	for _, ch := range doc.Challenges {
		if ch.ID == "" {
			return nil, fmt.Errorf("catalog: challenge without id")
		}
		if _, ok := c.byID[ch.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate challenge %q", ch.ID)
		}
		c.byID[ch.ID] = len(c.challenges)
		c.challenges = append(c.challenges, domain.Challenge{
			ID:          ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
		})
	}

	for _, qd := range doc.Questions {
		q, err := qd.toQuestion()
		if err != nil {
			return nil, fmt.Errorf("catalog: question %d: %w", qd.ID, err)
		}
		if _, ok := c.questions[q.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate question id %d", q.ID)
		}

		i, ok := c.byID[q.ChallengeID]
		if !ok {
			return nil, fmt.Errorf("catalog: question %d: unknown challenge %q", q.ID, q.ChallengeID)
		}

		c.questions[q.ID] = q
		c.challenges[i].QuestionIDs = append(c.challenges[i].QuestionIDs, q.ID)
	}

	return c, nil
}

func (qd questionDoc) toQuestion() (domain.Question, error) {
	if qd.ID <= 0 {
		return domain.Question{}, fmt.Errorf("id must be positive")
	}
	if qd.Points < 0 {
		return domain.Question{}, fmt.Errorf("points must not be negative")
	}

	q := domain.Question{
		ID:          qd.ID,
		ChallengeID: qd.ChallengeID,
		Title:       qd.Title,
		Level:       qd.Level,
		Description: qd.Description,
		Remarks:     qd.Remarks,
		Points:      qd.Points,
		TimeLimit:   time.Duration(qd.TimeLimit) * time.Second,
	}

	codeFields := qd.Language != "" || qd.StarterCode != "" || len(qd.Tests) > 0
	sqlFields := qd.Schema != "" || qd.Query != "" || qd.StarterQuery != ""
	choiceFields := len(qd.Options) > 0 || qd.CorrectIndex != nil

	switch domain.JudgeKind(qd.Kind) {
	case domain.KindDeclarative:
		if codeFields || choiceFields {
			return q, fmt.Errorf("declarative question has code or choice fields")
		}
		if qd.Query == "" {
			return q, fmt.Errorf("declarative question needs a reference query")
		}
		q.Oracle = domain.DeclarativeOracle{Schema: qd.Schema, Query: qd.Query, StarterQuery: qd.StarterQuery}

	case domain.KindInterpreted, domain.KindCompiled:
		if sqlFields || choiceFields {
			return q, fmt.Errorf("%s question has sql or choice fields", qd.Kind)
		}
		if len(qd.Tests) == 0 {
			return q, fmt.Errorf("%s question needs test cases", qd.Kind)
		}

		tests, err := toTestCases(qd.Tests)
		if err != nil {
			return q, err
		}

		if domain.JudgeKind(qd.Kind) == domain.KindInterpreted {
			q.Oracle = domain.InterpretedOracle{Language: orDefault(qd.Language, "python"), StarterCode: qd.StarterCode, Tests: tests}
		} else {
			q.Oracle = domain.CompiledOracle{Language: orDefault(qd.Language, "java"), StarterCode: qd.StarterCode, Tests: tests}
		}

	case domain.KindChoice:
		if sqlFields || codeFields {
			return q, fmt.Errorf("choice question has sql or code fields")
		}
		if len(qd.Options) < 2 || qd.CorrectIndex == nil {
			return q, fmt.Errorf("choice question needs at least two options and a correct_index")
		}
		if *qd.CorrectIndex < 0 || *qd.CorrectIndex >= len(qd.Options) {
			return q, fmt.Errorf("correct_index %d out of range", *qd.CorrectIndex)
		}
		q.Oracle = domain.ChoiceOracle{Options: qd.Options, CorrectIndex: *qd.CorrectIndex}

	default:
		return q, fmt.Errorf("unknown kind %q", qd.Kind)
	}

	return q, nil
}

func toTestCases(docs []testDoc) ([]domain.TestCase, error) {
	tests := make([]domain.TestCase, 0, len(docs))

	for i, d := range docs {
		args := make([]any, 0, len(d.Args))
		for j, a := range d.Args {
			v, err := literal.Normalize(a)
			if err != nil {
				return nil, fmt.Errorf("test %d arg %d: %w", i+1, j, err)
			}
			args = append(args, v)
		}

		exp, err := literal.Normalize(d.Expected)
		if err != nil {
			return nil, fmt.Errorf("test %d expected: %w", i+1, err)
		}

		tests = append(tests, domain.TestCase{Name: d.Name, Args: args, Expected: exp})
	}

	return tests, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (c *Catalog) question(id int64) (domain.Question, bool) {
	q, ok := c.questions[id]
	if !ok {
		return domain.Question{}, false
	}

	// Hand out copies of the slices so callers cannot edit the catalog.
	switch o := q.Oracle.(type) {
	case domain.InterpretedOracle:
		o.Tests = slices.Clone(o.Tests)
		q.Oracle = o
	case domain.CompiledOracle:
		o.Tests = slices.Clone(o.Tests)
		q.Oracle = o
	case domain.ChoiceOracle:
		o.Options = slices.Clone(o.Options)
		q.Oracle = o
	}

	return q, true
}

func (c *Catalog) challenge(id string) (domain.Challenge, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Challenge{}, false
	}

	ch := c.challenges[i]
	ch.QuestionIDs = slices.Clone(ch.QuestionIDs)
	return ch, true
}
