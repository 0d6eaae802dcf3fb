package step

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/command"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SQLDeployment runs a script from the SQL directory against a database,
// either a named inventory connection or explicit host/port/dbName.
type SQLDeployment struct {
	Base
	Database string `json:"database,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	DBName   string `json:"dbName,omitempty"`
	User     string `json:"user,omitempty"`
	File     string `json:"file"`
}

const defaultPostgresPort = 5432

func (s *SQLDeployment) StepType() string { return TypeSQLDeployment }

func (s *SQLDeployment) Describe() string {
	target := s.Database
	if target == "" {
		target = s.DBName + "@" + s.Host
	}
	return s.describe(fmt.Sprintf("run %s on %s", s.File, target))
}

type sqlTarget struct {
	host, db, user, passwordFile string
	port                         int
}

// resolve merges the named connection, the named or literal user, and any
// explicit fields. Explicit fields win.
func (s *SQLDeployment) resolve(r Resolver) (*sqlTarget, error) {
	t := &sqlTarget{}
	if s.Database != "" {
		db, err := r.Database(s.Database)
		if err != nil {
			return nil, err
		}
		t.host, t.port, t.db, t.user, t.passwordFile = db.Host, db.Port, db.Database, db.User, db.PasswordFile
	}
	if s.Host != "" {
		t.host = s.Host
	}
	if s.Port != 0 {
		t.port = s.Port
	}
	if s.DBName != "" {
		t.db = s.DBName
	}
	if s.User != "" {
		if u, err := r.DBUser(s.User); err == nil {
			t.user, t.passwordFile = u.User, u.PasswordFile
		} else {
			t.user = s.User
		}
	}
	if t.port == 0 {
		t.port = defaultPostgresPort
	}
	return t, nil
}

func (s *SQLDeployment) Execute(ctx context.Context, env *Env) (*Result, error) {
	script := filepath.Join(env.SQLDir, s.File)
	if _, err := os.Stat(script); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failed(apperrors.NotFound("sql script", s.File), nil), nil
		}
		return failed(apperrors.ExecutionFailure("sql-deployment", err.Error()), nil), nil
	}

	target, err := s.resolve(env.Inventory)
	if err != nil {
		return failed(err, nil), nil
	}

	var cmdEnv []string
	if target.passwordFile != "" {
		pw, err := os.ReadFile(target.passwordFile)
		if err != nil {
			return failed(apperrors.ExecutionFailure("sql-deployment", "cannot read password file: "+err.Error()), nil), nil
		}
		cmdEnv = append(cmdEnv, "PGPASSWORD="+strings.TrimSpace(string(pw)))
	}

	out := env.Runner.Run(ctx, &command.Command{
		Name: toolName(env.Tools.SQLClient, "psql"),
		Args: []string{
			"-h", target.host,
			"-p", strconv.Itoa(target.port),
			"-d", target.db,
			"-U", target.user,
			"-v", "ON_ERROR_STOP=1",
			"-f", script,
		},
		Env:     cmdEnv,
		Dir:     env.WorkDir,
		Timeout: env.remoteTimeout(),
	})
	if out.Failed() {
		return failed(out.Err, out.Lines), nil
	}

	// psql can exit 0 while reporting errors, so the output decides.
	inspection := command.Inspect(out.Lines)
	if inspection.HasErrors() {
		return &Result{
			Outcome:  OutcomeFailed,
			Output:   out.Lines,
			Warnings: inspection.Warnings,
			Err:      apperrors.ExecutionFailure("sql-deployment", "output reported "+inspection.Errors[0]),
		}, nil
	}
	return succeeded(out.Lines, inspection.Warnings), nil
}
