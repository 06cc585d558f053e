package onboarding

import (
	"strings"

	"github.com/studentpakistan/backend/core/school"
)

// ServerErrors maps the field errors of a rejected submission to the wizard field keys.
func ServerErrors(t UserType, fields map[string]string) ValidationErrors {
	errs := make(ValidationErrors, len(fields))
	for key, msg := range fields {
		switch {
		case key == ProfileImageField:
			key = "profilePicture"
		case t == School && strings.HasPrefix(key, school.AdminFieldPrefix):
			key = strings.TrimPrefix(key, school.AdminFieldPrefix)
		case t == School:
			key = schoolPrefix + key
		}
		errs[key] = msg
	}
	return errs
}

// StepOf returns the step showing the field `key`, 0 when no step does.
func StepOf(t UserType, key string) int {
	for step := 1; step <= t.Steps(); step++ {
		for _, f := range stepFields[stepKey{t, step}] {
			if f.Key == key {
				return step
			}
		}
	}
	return 0
}

// Reject shows the errors of a rejected submission, going back to the first step holding one of them.
// Errors of unknown fields keep the wizard on its current step.
func (w *Wizard) Reject(errs ValidationErrors) {
	if len(errs) == 0 {
		return
	}
	first := 0
	for key := range errs {
		if step := StepOf(w.UserType, key); step > 0 && (first == 0 || step < first) {
			first = step
		}
	}
	if first > 0 {
		w.Step = first
	}
	w.Errors = errs
}
