package queries

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/sparkify/dwh/internal/config"
)

var copyTemplate = template.Must(template.New("copy").Funcs(template.FuncMap{
	"lit": Literal,
}).Parse(`COPY {{.Table}} FROM {{lit .Source}} CREDENTIALS {{lit .Credentials}} JSON {{lit .JSONPath}}{{if .Region}} REGION {{lit .Region}}{{end}}`))

type copyData struct {
	Table       string
	Source      string
	Credentials string
	JSONPath    string
	Region      string
}

// Copy renders the bulk-load statements for both staging tables from the s3
// and iam_role config sections. Without a jsonpath file the event log is
// mapped with JSON 'auto'.
func Copy(cfg *config.Config) ([]Statement, error) {
	if cfg.S3.LogData == "" || cfg.S3.SongData == "" {
		return nil, fmt.Errorf("rendering copy statements: s3.log_data and s3.song_data are required")
	}
	if cfg.IAMRole.ARN == "" {
		return nil, fmt.Errorf("rendering copy statements: iam_role.arn is required")
	}

	creds := "aws_iam_role=" + cfg.IAMRole.ARN
	eventsPath := cfg.S3.LogJSONPath
	if eventsPath == "" {
		eventsPath = "auto"
	}

	inputs := []copyData{
		{Table: StagingEvents, Source: cfg.S3.LogData, Credentials: creds, JSONPath: eventsPath, Region: cfg.S3.Region},
		{Table: StagingSongs, Source: cfg.S3.SongData, Credentials: creds, JSONPath: "auto", Region: cfg.S3.Region},
	}

	stmts := make([]Statement, 0, len(inputs))
	for _, in := range inputs {
		var buf bytes.Buffer
		if err := copyTemplate.Execute(&buf, in); err != nil {
			return nil, fmt.Errorf("rendering copy for %s: %w", in.Table, err)
		}
		stmts = append(stmts, Statement{Kind: KindCopy, Table: in.Table, SQL: buf.String()})
	}
	return stmts, nil
}

// Literal quotes s as a SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
