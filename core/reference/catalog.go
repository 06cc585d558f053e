// Package reference serves the Pakistani education boards, subject groups and grade levels catalog.
package reference

import (
	_ "embed"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Education types
const (
	Matric = "matric"
	OLevel = "o_level"
	Both   = "both" // boards only
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	ErrBoardNotFound         = errors.New("board not found")
	ErrInvalidEducationType  = errors.New("invalid education type")
	EducationTypes           = []string{Matric, OLevel}
	nonWordRegex             = regexp.MustCompile(`[^a-z0-9]+`)
	subjectCodePrefixes      = map[string]string{Matric: "MTR", OLevel: "OL"}
	defaultCatalog, parseErr = Parse(catalogYAML)
)

type (
	Board struct {
		ID           string   `json:"id" yaml:"id"`
		Name         string   `json:"name" yaml:"name"`
		Type         string   `json:"type" yaml:"type"`
		Region       string   `json:"region" yaml:"region"`
		Established  int      `json:"established" yaml:"established"`
		Jurisdiction []string `json:"jurisdiction" yaml:"jurisdiction"`
		Website      string   `json:"website,omitempty" yaml:"website"`
	}

	SubjectGroup struct {
		ID            string   `json:"id" yaml:"id"`
		Name          string   `json:"name" yaml:"name"`
		EducationType string   `json:"educationType" yaml:"educationType"`
		IsCompulsory  bool     `json:"isCompulsory" yaml:"compulsory"`
		Subjects      []string `json:"subjects" yaml:"subjects"`
	}

	Subject struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Code          string `json:"code"`
		EducationType string `json:"educationType"`
		IsCompulsory  bool   `json:"isCompulsory"`
	}

	GradeLevel struct {
		ID    string `json:"id" yaml:"id"`
		Name  string `json:"name" yaml:"name"`
		Level int    `json:"level" yaml:"level"`
	}

	// Catalog is the read-only reference data. It is safe for concurrent use.
	Catalog struct {
		boards      []Board
		groups      []SubjectGroup
		grades      map[string][]GradeLevel
		subjects    map[string][]Subject // {educationType: subjects}
		boardsByID  map[string]Board
		subjectByID map[string]Subject
	}
)

// Default returns the embedded catalog.
func Default() *Catalog {
	if parseErr != nil {
		panic(errors.Wrap(parseErr, "parsing embedded catalog"))
	}
	return defaultCatalog
}

// Parse builds a Catalog from its YAML representation.
func Parse(data []byte) (*Catalog, error) {
	var raw struct {
		Boards        []Board                 `yaml:"boards"`
		SubjectGroups []SubjectGroup          `yaml:"subjectGroups"`
		GradeLevels   map[string][]GradeLevel `yaml:"gradeLevels"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "unmarshalling catalog")
	}

	c := &Catalog{
		boards:      raw.Boards,
		groups:      raw.SubjectGroups,
		grades:      raw.GradeLevels,
		subjects:    make(map[string][]Subject, len(EducationTypes)),
		boardsByID:  make(map[string]Board, len(raw.Boards)),
		subjectByID: make(map[string]Subject),
	}
	for _, b := range raw.Boards {
		if _, dup := c.boardsByID[b.ID]; dup {
			return nil, errors.Errorf("duplicate board %q", b.ID)
		}
		c.boardsByID[b.ID] = b
	}
	for _, typ := range EducationTypes {
		c.subjects[typ] = c.deriveSubjects(typ)
		for _, s := range c.subjects[typ] {
			c.subjectByID[s.ID] = s
		}
	}
	return c, nil
}

// deriveSubjects de-duplicates the subjects of `typ`'s groups, keeping the groups order.
// A subject is compulsory when it belongs to a compulsory group or appears in every group.
func (c *Catalog) deriveSubjects(typ string) []Subject {
	var groups []SubjectGroup
	for _, g := range c.groups {
		if g.EducationType == typ {
			groups = append(groups, g)
		}
	}

	counts := make(map[string]int)
	compulsory := make(map[string]bool)
	order := make([]string, 0)
	for _, g := range groups {
		for _, name := range g.Subjects {
			if counts[name] == 0 {
				order = append(order, name)
			}
			counts[name]++
			if g.IsCompulsory {
				compulsory[name] = true
			}
		}
	}

	subjects := make([]Subject, 0, len(order))
	for _, name := range order {
		subjects = append(subjects, Subject{
			ID:            SubjectID(typ, name),
			Name:          name,
			Code:          subjectCode(typ, name),
			EducationType: typ,
			IsCompulsory:  compulsory[name] || (len(groups) > 1 && counts[name] == len(groups)),
		})
	}
	return subjects
}

// SubjectID returns the stable identifier of a subject (eg: "o_level-art-design").
func SubjectID(educationType, name string) string {
	slug := strings.Trim(nonWordRegex.ReplaceAllString(strings.ToLower(name), "-"), "-")
	return educationType + "-" + slug
}

func subjectCode(educationType, name string) string {
	var b strings.Builder
	b.WriteString(subjectCodePrefixes[educationType])
	b.WriteString("-")
	words := strings.Fields(nonWordRegex.ReplaceAllString(strings.ToLower(name), " "))
	for i, w := range words {
		if i == 3 {
			break
		}
		if len(w) > 3 {
			w = w[:3]
		}
		b.WriteString(strings.ToUpper(w))
	}
	return b.String()
}

func IsEducationType(typ string) bool {
	return typ == Matric || typ == OLevel
}

// Boards lists the boards offering `educationType` (boards of type "both" included); all boards when empty.
func (c *Catalog) Boards(educationType string) []Board {
	boards := make([]Board, 0, len(c.boards))
	for _, b := range c.boards {
		if educationType == "" || b.Type == educationType || b.Type == Both {
			boards = append(boards, b)
		}
	}
	return boards
}

// BoardsByProvince does a case-insensitive match on the board region.
func (c *Catalog) BoardsByProvince(province string) []Board {
	boards := make([]Board, 0)
	for _, b := range c.boards {
		if strings.EqualFold(b.Region, province) {
			boards = append(boards, b)
		}
	}
	return boards
}

func (c *Catalog) Board(id string) (Board, error) {
	if b, ok := c.boardsByID[id]; ok {
		return b, nil
	}
	return Board{}, ErrBoardNotFound
}

// Offers reports whether `b` examines `educationType`.
func (b Board) Offers(educationType string) bool {
	return b.Type == educationType || b.Type == Both
}

// Subjects lists the subjects a board offers for an education type.
// A board that does not offer the type returns an empty list.
func (c *Catalog) Subjects(boardID, educationType string) ([]Subject, error) {
	if !IsEducationType(educationType) {
		return nil, ErrInvalidEducationType
	}
	b, err := c.Board(boardID)
	if err != nil {
		return nil, err
	}
	if !b.Offers(educationType) {
		return []Subject{}, nil
	}
	return append([]Subject{}, c.subjects[educationType]...), nil
}

// SubjectsByType lists all the subjects of an education type.
func (c *Catalog) SubjectsByType(educationType string) []Subject {
	return append([]Subject{}, c.subjects[educationType]...)
}

func (c *Catalog) SubjectGroups(educationType string) []SubjectGroup {
	groups := make([]SubjectGroup, 0)
	for _, g := range c.groups {
		if g.EducationType == educationType {
			groups = append(groups, g)
		}
	}
	return groups
}

func (c *Catalog) GradeLevels(educationType string) []GradeLevel {
	return append([]GradeLevel{}, c.grades[educationType]...)
}

// ValidSubject reports whether `id` is a subject of `educationType`.
func (c *Catalog) ValidSubject(educationType, id string) bool {
	s, ok := c.subjectByID[id]
	return ok && s.EducationType == educationType
}

// ValidGrade reports whether `id` is a grade level of `educationType`.
func (c *Catalog) ValidGrade(educationType, id string) bool {
	for _, g := range c.grades[educationType] {
		if g.ID == id {
			return true
		}
	}
	return false
}
