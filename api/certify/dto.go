package certify

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ExpenseCertify/api"
	"ExpenseCertify/api/constants"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// UploadForm is the multipart metadata sent with a source file.
type UploadForm struct {
	UserName   string   `form:"user_name" validate:"required,max=128"`
	Team       []string `form:"team" validate:"dive,max=128"`
	Role       string   `form:"role" validate:"required,max=64"`
	UploadTime string   `form:"upload_time"`
}

type AcceptRequest struct {
	Reviewer string `json:"reviewer" validate:"required"`
}

type CorrectionRequest struct {
	Status string `json:"status" validate:"required,oneof=Yes No"`
	By     string `json:"by" validate:"required"`
}

type RecordAcceptedRequest struct {
	Row      json.RawMessage `json:"row" validate:"required"`
	Reason   string          `json:"reason" validate:"required"`
	Reviewer string          `json:"reviewer" validate:"required"`
}

type ReviewRequest struct {
	Status   string `json:"status" validate:"required"`
	Comment  string `json:"comment" validate:"max=2000"`
	Reviewer string `json:"reviewer" validate:"required"`
}

type RuleRequest struct {
	SubDepartment string   `json:"sub_department" validate:"required"`
	Column        string   `json:"rule_column" validate:"required"`
	Values        []string `json:"rule_values" validate:"required,min=1,dive,required"`
}

type RuleKey struct {
	SubDepartment string `form:"sub_department" validate:"required"`
	Column        string `form:"rule_column" validate:"required"`
}

type OptionRequest struct {
	Column string `json:"rule_column" validate:"required"`
	Value  string `json:"option_value" validate:"required"`
}

// fieldErrors flattens validator errors to field -> failed tag.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// check validates v and writes a 400 on failure.
func check(w http.ResponseWriter, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		api.RespondWithFields(w, constants.ErrValidationFailed, fieldErrors(err))
		return false
	}
	return true
}

// decodeJSON reads a JSON body into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return false
	}
	return check(w, v)
}
