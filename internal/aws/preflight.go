package aws

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// PreflightInput names the resources a load depends on.
type PreflightInput struct {
	RoleARN     string
	LogData     string
	LogJSONPath string // optional
	SongData    string
}

// PreflightCheck is the outcome of one check.
type PreflightCheck struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	OK     bool   `yaml:"ok"`
	Detail string `yaml:"detail,omitempty"`
}

// PreflightResult holds the outcome of all pre-flight checks.
type PreflightResult struct {
	Identity *CallerIdentity  `yaml:"identity,omitempty"`
	Checks   []PreflightCheck `yaml:"checks"`
}

// OK reports whether every check passed.
func (r *PreflightResult) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Errors lists the details of failed checks.
func (r *PreflightResult) Errors() []string {
	var errs []string
	for _, c := range r.Checks {
		if !c.OK {
			errs = append(errs, fmt.Sprintf("%s %s: %s", c.Name, c.Target, c.Detail))
		}
	}
	return errs
}

type probe struct {
	name, target string
	run          func(ctx context.Context) (bool, string, error)
}

// RunPreflight checks credentials, the warehouse role and the S3 sources
// concurrently. Individual failures are reported in the result; the returned
// error is non-nil only when ctx ends first.
func RunPreflight(ctx context.Context, client Client, in PreflightInput) (*PreflightResult, error) {
	result := &PreflightResult{}
	probes := []probe{
		{"credentials", "sts", func(ctx context.Context) (bool, string, error) {
			id, err := client.VerifyCredentials(ctx)
			if err != nil {
				return false, "", err
			}
			result.Identity = id
			return true, id.ARN, nil
		}},
		{"iam_role", in.RoleARN, func(ctx context.Context) (bool, string, error) {
			name, err := RoleNameFromARN(in.RoleARN)
			if err != nil {
				return false, "", err
			}
			ok, err := client.RoleExists(ctx, name)
			if err != nil || !ok {
				return false, "role " + name + " does not exist", err
			}
			return true, "", nil
		}},
		prefixProbe(client, "log_data", in.LogData),
		prefixProbe(client, "song_data", in.SongData),
	}
	if in.LogJSONPath != "" {
		probes = append(probes, probe{"log_jsonpath", in.LogJSONPath, func(ctx context.Context) (bool, string, error) {
			loc, err := ParseS3URI(in.LogJSONPath)
			if err != nil {
				return false, "", err
			}
			ok, err := client.ObjectExists(ctx, loc.Bucket, loc.Key)
			if err != nil || !ok {
				return false, "object not found", err
			}
			return true, "", nil
		}})
	}

	result.Checks = make([]PreflightCheck, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		g.Go(func() error {
			ok, detail, err := p.run(gctx)
			if err != nil {
				detail = err.Error()
			}
			result.Checks[i] = PreflightCheck{Name: p.name, Target: p.target, OK: ok && err == nil, Detail: detail}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("preflight: %w", err)
	}
	return result, nil
}

func prefixProbe(client Client, name, uri string) probe {
	return probe{name, uri, func(ctx context.Context) (bool, string, error) {
		loc, err := ParseS3URI(uri)
		if err != nil {
			return false, "", err
		}
		ok, err := client.PrefixHasObjects(ctx, loc.Bucket, strings.TrimSuffix(loc.Key, "/"))
		if err != nil || !ok {
			return false, "no objects under prefix", err
		}
		return true, "", nil
	}}
}
