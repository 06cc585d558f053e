package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/onboarding"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/services/apiclient"
)

// session drives one wizard, from the terminal or from an answers file.
type session struct {
	wizard *onboarding.Wizard
	client *apiclient.Client
	logger core.Logger
	in     *bufio.Reader
	out    io.Writer
	secret func() (string, error) // reads passwords without echo, nil reads a plain line

	answers map[string]string // nil when interactive
	baseDir string            // resolves the relative file paths of the answers

	mu     sync.Mutex
	boards map[string][]reference.Board
	grades map[string][]reference.GradeLevel
}

func newSession(t onboarding.UserType, client *apiclient.Client, logger core.Logger, in io.Reader, out io.Writer) *session {
	return &session{
		wizard: onboarding.New(t, onboarding.Deps{Submitter: client, Lookup: client}),
		client: client,
		logger: logger,
		in:     bufio.NewReader(in),
		out:    out,
		boards: make(map[string][]reference.Board),
		grades: make(map[string][]reference.GradeLevel),
	}
}

// loadAnswers reads a YAML map of field keys to values; lists are joined with commas.
func (s *session) loadAnswers(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading answers")
	}
	var raw map[string]interface{}
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parsing answers")
	}

	s.answers = make(map[string]string, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case nil:
		case []interface{}:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, fmt.Sprint(item))
			}
			s.answers[key] = strings.Join(items, ",")
		default:
			s.answers[key] = fmt.Sprint(val)
		}
	}
	s.baseDir = filepath.Dir(path)
	return nil
}

// preload fetches the boards and grade levels of every education type.
func (s *session) preload(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, typ := range reference.EducationTypes {
		typ := typ
		g.Go(func() error {
			boards := s.client.Boards(ctx, typ)
			s.mu.Lock()
			s.boards[typ] = boards
			s.mu.Unlock()
			return ctx.Err()
		})
		g.Go(func() error {
			grades := s.client.GradeLevels(ctx, typ)
			s.mu.Lock()
			s.grades[typ] = grades
			s.mu.Unlock()
			return ctx.Err()
		})
	}
	return g.Wait()
}

func (s *session) run(ctx context.Context) error {
	if err := s.preload(ctx); err != nil {
		return errors.Wrap(err, "loading reference data")
	}

	w := s.wizard
	for !w.Done {
		step := w.Step
		fmt.Fprintf(s.out, "\nStep %d/%d: %s\n", step, w.UserType.Steps(), onboarding.Title(w.UserType, step))
		if err := s.fill(ctx, step); err != nil {
			return err
		}

		err := w.Advance(ctx)
		if err == nil {
			continue
		}
		if apiErr, ok := errors.Cause(err).(*apiclient.APIError); ok && len(apiErr.Fields) > 0 {
			w.Reject(onboarding.ServerErrors(w.UserType, apiErr.Fields))
		} else if errors.Cause(err) != onboarding.ErrStepInvalid {
			return err
		}
		s.printErrors()
		if s.answers != nil || !s.fixable() {
			return err
		}
	}

	fmt.Fprintf(s.out, "\nOnboarding completed! Continue on %s\n", w.Redirect)
	return nil
}

// fill sets the fields of `step`. When the step has errors, only the invalid fields are asked again.
func (s *session) fill(ctx context.Context, step int) error {
	w := s.wizard
	retry := len(w.Errors) > 0
	for _, f := range onboarding.Fields(w.UserType, step) {
		if _, invalid := w.Errors[f.Key]; retry && !invalid {
			continue
		}
		if !s.shown(f) {
			continue
		}

		value, ok, err := s.value(ctx, f)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err = s.apply(ctx, f, value); err != nil {
			if s.answers != nil {
				return err
			}
			fmt.Fprintf(s.out, "  ! %v\n", err)
		}
	}
	return nil
}

// shown hides the school fields that do not apply to the chosen school type.
func (s *session) shown(f onboarding.Field) bool {
	edu := s.wizard.Data.Education
	switch f.Key {
	case "schoolId":
		return edu.SchoolType == "registered"
	case "schoolName":
		return edu.SchoolType == "not_listed"
	}
	return true
}

func (s *session) value(ctx context.Context, f onboarding.Field) (string, bool, error) {
	if s.answers != nil {
		v, ok := s.answers[f.Key]
		if !ok && f.Key == "confirmPassword" {
			v, ok = s.answers["password"]
		}
		if ok && f.Kind == onboarding.KindFile && v != "" && !filepath.IsAbs(v) {
			v = filepath.Join(s.baseDir, v)
		}
		return v, ok, nil
	}
	v, err := s.prompt(ctx, f)
	return v, v != "", err
}

func (s *session) apply(ctx context.Context, f onboarding.Field, value string) error {
	w := s.wizard
	if f.Kind == onboarding.KindFile {
		file, err := upload.FromPath(f.FileKind, value)
		if err != nil {
			return errors.Wrap(err, f.Label)
		}
		return w.SetFile(f.Key, &file)
	}

	if err := w.Set(f.Key, value); err != nil {
		return err
	}
	if f.Key == "username" {
		available, err := w.CheckUsername(ctx, value)
		switch {
		case err != nil:
			s.logger.Warn("checking username", err)
		case !available:
			fmt.Fprintf(s.out, "  ! username %q is already taken\n", value)
		}
	}
	return nil
}

func (s *session) prompt(ctx context.Context, f onboarding.Field) (string, error) {
	label := f.Label
	if f.Required {
		label += " *"
	}
	if msg, ok := s.wizard.Errors[f.Key]; ok {
		fmt.Fprintf(s.out, "  ! %s\n", msg)
	}

	var (
		options []onboarding.Option
		err     error
	)
	if f.Kind == onboarding.KindSelect || f.Kind == onboarding.KindMultiSelect {
		if options, err = s.options(ctx, f); err != nil {
			return "", err
		}
		for i, o := range options {
			fmt.Fprintf(s.out, "  %2d) %s\n", i+1, o.Label)
		}
	}

	switch f.Kind {
	case onboarding.KindPassword:
		fmt.Fprintf(s.out, "%s: ", label)
		if s.secret != nil {
			pwd, err := s.secret()
			fmt.Fprintln(s.out)
			return pwd, errors.Wrap(err, "reading password")
		}
	case onboarding.KindMultiSelect:
		fmt.Fprintf(s.out, "%s (comma separated): ", label)
	case onboarding.KindFile:
		fmt.Fprintf(s.out, "%s (path): ", label)
	default:
		fmt.Fprintf(s.out, "%s: ", label)
	}

	line, err := s.readLine()
	if err != nil || options == nil {
		return line, err
	}
	if f.Kind == onboarding.KindSelect {
		return choose(options, line), nil
	}
	var values []string
	for _, item := range strings.Split(line, ",") {
		if v := choose(options, item); v != "" {
			values = append(values, v)
		}
	}
	return strings.Join(values, ","), nil
}

// options lists the choices of a select field; the dynamic ones depend on the data entered so far.
func (s *session) options(ctx context.Context, f onboarding.Field) ([]onboarding.Option, error) {
	edu := s.wizard.Data.Education
	var options []onboarding.Option

	switch f.Source {
	case "":
		return f.Options, nil
	case onboarding.SourceBoards:
		s.mu.Lock()
		for _, b := range s.boards[edu.EducationType] {
			options = append(options, onboarding.Option{Value: b.ID, Label: b.Name})
		}
		s.mu.Unlock()
	case onboarding.SourceGradeLevels:
		s.mu.Lock()
		for _, g := range s.grades[edu.EducationType] {
			options = append(options, onboarding.Option{Value: g.ID, Label: g.Name})
		}
		s.mu.Unlock()
	case onboarding.SourceSubjects:
		for _, sub := range s.client.Subjects(ctx, edu.BoardID, edu.EducationType) {
			label := sub.Name
			if sub.IsCompulsory {
				label += " (compulsory)"
			}
			options = append(options, onboarding.Option{Value: sub.ID, Label: label})
		}
	case onboarding.SourceSchools:
		fmt.Fprint(s.out, "Search your school by name: ")
		query, err := s.readLine()
		if err != nil {
			return nil, err
		}
		schools, err := s.wizard.SearchSchools(ctx, query, "")
		if err != nil {
			fmt.Fprintf(s.out, "  ! %v\n", err)
		}
		for _, sch := range schools {
			options = append(options, onboarding.Option{Value: sch.ID, Label: sch.Name + ", " + sch.City})
		}
	}
	if len(options) == 0 {
		fmt.Fprintln(s.out, "  (no options available)")
	}
	return options, nil
}

func (s *session) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", errors.Wrap(err, "reading input")
	}
	return strings.TrimSpace(line), nil
}

// fixable reports whether one of the errors belongs to a field the user can edit.
func (s *session) fixable() bool {
	for key := range s.wizard.Errors {
		if onboarding.StepOf(s.wizard.UserType, key) > 0 {
			return true
		}
	}
	return false
}

func (s *session) printErrors() {
	keys := make([]string, 0, len(s.wizard.Errors))
	for key := range s.wizard.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintln(s.out, "Please fix the following:")
	for _, key := range keys {
		fmt.Fprintf(s.out, "  - %s: %s\n", key, s.wizard.Errors[key])
	}
}

// choose accepts the option number or its value.
func choose(options []onboarding.Option, input string) string {
	input = strings.TrimSpace(input)
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1].Value
	}
	for _, o := range options {
		if strings.EqualFold(o.Value, input) {
			return o.Value
		}
	}
	return ""
}
