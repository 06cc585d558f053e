package school

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studentpakistan/backend/core"
)

var (
	NowFunc = time.Now // mockable

	establishedYearTag  = "pastyear"
	establishedYearText = "year cannot be in the future"
)

func init() {
	core.Validate.RegisterStructValidation(newSchoolStructValidation, NewSchool{})
	core.RegisterCustomTranslation(establishedYearTag, establishedYearText)
}

// newSchoolStructValidation checks the rules depending on the current date.
func newSchoolStructValidation(sl validator.StructLevel) {
	ns := sl.Current().Interface().(NewSchool)
	if ns.EstablishedYear > NowFunc().Year() {
		sl.ReportError(ns.EstablishedYear, "establishedYear", "EstablishedYear", establishedYearTag, fmt.Sprint(ns.EstablishedYear))
	}
}
