package main

import (
	"github.com/protomem/gatekeeper/internal/model"
	"github.com/protomem/gatekeeper/internal/validator"
)

// Validation rules

func validateRequestUpdateSubject(v *validator.Validator, request requestUpdateSubject) {
	if request.DisplayName != nil {
		validateDisplayName(v, *request.DisplayName)
	}
	if request.Status != nil {
		validateSubjectStatus(v, *request.Status)
	}
}

func validateSubjectID(v *validator.Validator, subjectID string) {
	v.CheckField(validator.NotBlank(subjectID), "subjectId", "cannot be blank")
	v.CheckField(validator.MaxRunes(subjectID, 64), "subjectId", "must not be longer than 64 characters")
}

func validateDisplayName(v *validator.Validator, displayName string) {
	v.CheckField(validator.NotBlank(displayName), "displayName", "cannot be blank")
	v.CheckField(validator.MaxRunes(displayName, 256), "displayName", "must not be longer than 256 characters")
}

func validateSubjectStatus(v *validator.Validator, status model.SubjectStatus) {
	v.CheckField(
		validator.In(status, model.SubjectStatusActive, model.SubjectStatusInactive),
		"status",
		"must be Active or Inactive",
	)
}
