package job

import (
	"deployd/internal/apperrors"
	"deployd/internal/step"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Validation limits
const (
	maxVariables      = 64
	maxVariableLen    = 1024
	maxCallbackEvents = 16
	maxTemplateName   = 128
)

var (
	// TemplateNamePattern allows alphanumeric, dots, hyphens and underscores.
	TemplateNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	variablePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// SingleStep builds the one-step plan for the file and sql kinds.
func (r *Request) SingleStep() (step.Step, error) {
	switch r.Kind {
	case KindFile:
		return &step.FileDeployment{
			Base:        step.Base{Order: 1},
			Files:       r.Files,
			TargetPath:  r.TargetPath,
			TargetUser:  r.TargetUser,
			TargetHosts: r.TargetHosts,
			Mode:        r.Mode,
		}, nil
	case KindSQL:
		return &step.SQLDeployment{
			Base:     step.Base{Order: 1},
			Database: r.Database,
			Host:     r.Host,
			Port:     r.Port,
			DBName:   r.DBName,
			User:     r.User,
			File:     r.File,
		}, nil
	default:
		return nil, fmt.Errorf("kind %q has no single-step plan", r.Kind)
	}
}

// Validate checks a submission. It does not modify the request.
func (r *Request) Validate() error {
	switch r.Kind {
	case KindFile, KindSQL:
		s, err := r.SingleStep()
		if err != nil {
			return err
		}
		if err := step.Validate(0, s); err != nil {
			return unprefix(err)
		}

	case KindTemplate:
		if r.Template == "" {
			return apperrors.Validation("templateName", "templateName is required")
		}
		if len(r.Template) > maxTemplateName || !TemplateNamePattern.MatchString(r.Template) {
			return apperrors.Validation("templateName", "templateName must be alphanumeric (dots, hyphens and underscores allowed)")
		}
		if len(r.Variables) > maxVariables {
			return apperrors.Validation("variables", fmt.Sprintf("variables exceed maximum of %d entries", maxVariables))
		}
		for k, v := range r.Variables {
			if !variablePattern.MatchString(k) {
				return apperrors.Validation("variables", fmt.Sprintf("invalid variable name %q", k))
			}
			if len(v) > maxVariableLen {
				return apperrors.Validation("variables", fmt.Sprintf("variable %s exceeds maximum length of %d", k, maxVariableLen))
			}
		}

	case "":
		return apperrors.Validation("kind", "kind is required")
	default:
		return apperrors.Validation("kind", fmt.Sprintf("kind must be one of file, sql, template; got %q", r.Kind))
	}

	if r.Callback != nil {
		if err := validateURL(r.Callback.URL); err != nil {
			return apperrors.Validation("callback.url", fmt.Sprintf("invalid callback URL: %v", err))
		}
		if len(r.Callback.Events) > maxCallbackEvents {
			return apperrors.Validation("callback.events", fmt.Sprintf("callback events exceed maximum of %d", maxCallbackEvents))
		}
		for _, e := range r.Callback.Events {
			if !slices.Contains(EventTypes, e) {
				return apperrors.Validation("callback.events", fmt.Sprintf("unknown callback event %q", e))
			}
		}
	}
	return nil
}

// unprefix rewrites a step validation error so it names request fields
// rather than steps[0].
func unprefix(err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return err
	}
	field := strings.TrimPrefix(appErr.Field, "steps[0].")
	msg := strings.TrimPrefix(appErr.Message, "step[0]: ")
	return apperrors.Validation(field, msg)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
