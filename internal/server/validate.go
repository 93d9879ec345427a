package server

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "oneof":
			out[fe.Field()] = "must be one of: " + fe.Param()
		case "max":
			out[fe.Field()] = "must be at most " + fe.Param() + " characters"
		default:
			out[fe.Field()] = "failed on " + fe.Tag()
		}
	}
	return out
}

type feedbackRequest struct {
	InsightID    string `json:"insight_id" validate:"required,max=128"`
	FeedbackType string `json:"feedback_type" validate:"required,oneof=detailed summary"`
	Rating       string `json:"rating" validate:"required,oneof=thumbs_up thumbs_down"`
	FeedbackText string `json:"feedback_text" validate:"max=5000"`
}

type analyzeForm struct {
	ProjectName   string `json:"project_name" validate:"max=200"`
	SaveMemory    bool   `json:"save_memory"`
	Quick         bool   `json:"quick"`
	GenerateChart bool   `json:"generate_chart"`
}

// formBool accepts true, 1, yes and on.
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
