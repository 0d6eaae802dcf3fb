package step

import (
	"deployd/internal/apperrors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// MaxTimeoutSeconds bounds a shell step's own timeout (24h).
const MaxTimeoutSeconds = 24 * 60 * 60

var (
	unitName = regexp.MustCompile(`^[A-Za-z0-9@._:-]+$`)
	fileMode = regexp.MustCompile(`^0?[0-7]{3,4}$`)
)

// Validate validates a step at the given index.
func Validate(i int, s Step) error {
	field := fmt.Sprintf("steps[%d]", i)

	if s.StepOrder() < 1 {
		return apperrors.Validation(field+".order", fmt.Sprintf("step[%d]: order must be a positive integer", i))
	}

	switch st := s.(type) {
	case *ShellCommand:
		if strings.TrimSpace(st.Command) == "" {
			return apperrors.Validation(field+".command", fmt.Sprintf("step[%d]: command is required", i))
		}
		if st.TimeoutSeconds < 0 || st.TimeoutSeconds > MaxTimeoutSeconds {
			return apperrors.Validation(field+".timeoutSeconds", fmt.Sprintf("step[%d]: timeoutSeconds must be between 0 and %d", i, MaxTimeoutSeconds))
		}

	case *FileDeployment:
		if len(st.Files) == 0 {
			return apperrors.Validation(field+".files", fmt.Sprintf("step[%d]: at least one file is required", i))
		}
		for j, f := range st.Files {
			if err := validateRelPath(f); err != nil {
				return apperrors.Validation(fmt.Sprintf("%s.files[%d]", field, j), fmt.Sprintf("step[%d]: invalid file %q: %v", i, f, err))
			}
		}
		if !path.IsAbs(st.TargetPath) {
			return apperrors.Validation(field+".targetPath", fmt.Sprintf("step[%d]: targetPath must be an absolute path", i))
		}
		if len(st.TargetHosts) == 0 {
			return apperrors.Validation(field+".targetHosts", fmt.Sprintf("step[%d]: at least one target host is required", i))
		}
		if st.Mode != "" && !fileMode.MatchString(st.Mode) {
			return apperrors.Validation(field+".mode", fmt.Sprintf("step[%d]: mode must be octal, got %q", i, st.Mode))
		}

	case *ServiceOperation:
		if !slices.Contains(ServiceOperations, st.Operation) {
			return apperrors.Validation(field+".operation", fmt.Sprintf("step[%d]: operation must be one of %s", i, strings.Join(ServiceOperations, ", ")))
		}
		if st.Operation != "daemon-reload" && !unitName.MatchString(st.Service) {
			return apperrors.Validation(field+".service", fmt.Sprintf("step[%d]: a valid service name is required", i))
		}
		if len(st.TargetHosts) == 0 {
			return apperrors.Validation(field+".targetHosts", fmt.Sprintf("step[%d]: at least one target host is required", i))
		}

	case *SQLDeployment:
		if st.File == "" {
			return apperrors.Validation(field+".file", fmt.Sprintf("step[%d]: file is required", i))
		}
		if err := validateRelPath(st.File); err != nil {
			return apperrors.Validation(field+".file", fmt.Sprintf("step[%d]: invalid file: %v", i, err))
		}
		if st.Database == "" {
			if st.Host == "" || st.DBName == "" || st.User == "" {
				return apperrors.Validation(field+".database", fmt.Sprintf("step[%d]: database, or host, dbName and user, are required", i))
			}
		}
		if st.Port < 0 || st.Port > 65535 {
			return apperrors.Validation(field+".port", fmt.Sprintf("step[%d]: port out of range", i))
		}

	case *RemotePlaybook:
		if st.Playbook == "" {
			return apperrors.Validation(field+".playbook", fmt.Sprintf("step[%d]: playbook is required", i))
		}

	case *HelmUpgrade:
		if st.Upgrade == "" {
			return apperrors.Validation(field+".upgrade", fmt.Sprintf("step[%d]: upgrade is required", i))
		}
	}

	return nil
}

// ValidateList validates every step and requires unique orders.
func ValidateList(steps List) error {
	if len(steps) == 0 {
		return apperrors.Validation("steps", "at least one step is required")
	}
	seen := make(map[int]bool, len(steps))
	for i, s := range steps {
		if err := Validate(i, s); err != nil {
			return err
		}
		if seen[s.StepOrder()] {
			return apperrors.Validation(fmt.Sprintf("steps[%d].order", i), fmt.Sprintf("step[%d]: duplicate order %d", i, s.StepOrder()))
		}
		seen[s.StepOrder()] = true
	}
	return nil
}

// Sorted returns the steps in ascending order. The input is not modified.
func Sorted(steps List) List {
	out := slices.Clone(steps)
	slices.SortStableFunc(out, func(a, b Step) int { return a.StepOrder() - b.StepOrder() })
	return out
}

func validateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("path is empty")
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("absolute paths not allowed")
	}
	cleaned := filepath.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path traversal not allowed")
	}
	return nil
}
