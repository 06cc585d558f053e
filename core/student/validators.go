package student

import (
	"github.com/go-playground/validator/v10"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/reference"
)

var (
	boardTag  = "board"
	boardText = "select a board offering this education type"

	gradeTag  = "grade"
	gradeText = "select a valid class/grade"

	subjectsMinTag  = "subjectsmin"
	subjectsMinText = "Select at least one subject"

	subjectTag  = "subject"
	subjectText = "invalid subject for this education type"
)

func init() {
	core.Validate.RegisterStructValidation(completeProfileStructValidation, CompleteProfile{})
	core.RegisterCustomTranslation(boardTag, boardText)
	core.RegisterCustomTranslation(gradeTag, gradeText)
	core.RegisterCustomTranslation(subjectsMinTag, subjectsMinText)
	core.RegisterCustomTranslation(subjectTag, subjectText)
}

// completeProfileStructValidation checks the conditional school fields and the education fields against the catalog.
func completeProfileStructValidation(sl validator.StructLevel) {
	cp := sl.Current().Interface().(CompleteProfile)

	switch cp.SchoolType {
	case SchoolRegistered:
		if cp.SchoolID == "" {
			sl.ReportError(cp.SchoolID, "schoolId", "SchoolID", "required", "")
		}
	case SchoolNotListed:
		if cp.SchoolName == "" {
			sl.ReportError(cp.SchoolName, "schoolName", "SchoolName", "required", "")
		}
	}

	if !reference.IsEducationType(cp.EducationType) {
		return // reported by the field tags
	}
	catalog := reference.Default()

	if cp.BoardID != "" {
		if b, err := catalog.Board(cp.BoardID); err != nil || !b.Offers(cp.EducationType) {
			sl.ReportError(cp.BoardID, "boardId", "BoardID", boardTag, "")
		}
	}
	if cp.ClassGrade != "" && !catalog.ValidGrade(cp.EducationType, cp.ClassGrade) {
		sl.ReportError(cp.ClassGrade, "classGrade", "ClassGrade", gradeTag, "")
	}

	if len(cp.Subjects) == 0 {
		sl.ReportError(cp.Subjects, "subjects", "Subjects", subjectsMinTag, "")
		return
	}
	for _, id := range cp.Subjects {
		if !catalog.ValidSubject(cp.EducationType, id) {
			sl.ReportError(cp.Subjects, "subjects", "Subjects", subjectTag, id)
			return
		}
	}
}
