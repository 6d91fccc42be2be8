package policy

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/config"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

// secretPatterns are glob patterns, matched against the base name of
// each changed file, that flag likely credential material.
var secretPatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
	"*credentials*",
	"*.keystore",
}

// NamePattern is the builtin evaluator. It checks changeset size limits
// and flags files whose names suggest committed secrets. It inspects
// metadata only, never file contents.
type NamePattern struct {
	maxFiles      int
	maxFileLines  int
	blockSecrets  bool
	blockBigFiles bool
}

func NewNamePattern(cfg config.PolicyConfig) *NamePattern {
	return &NamePattern{
		maxFiles:      cfg.MaxFiles,
		maxFileLines:  cfg.MaxFileLines,
		blockSecrets:  cfg.BlockSecrets,
		blockBigFiles: cfg.BlockBigFiles,
	}
}

func (p *NamePattern) Name() string { return "name-pattern" }

func (p *NamePattern) Evaluate(ctx context.Context, in Input) []domain.PolicyFinding {
	var findings []domain.PolicyFinding

	if p.maxFiles > 0 && len(in.Files) > p.maxFiles {
		findings = append(findings, domain.PolicyFinding{
			RuleID:   "changeset/max-files",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("pull request touches %d files, limit is %d", len(in.Files), p.maxFiles),
		})
	}

	for _, f := range in.Files {
		if p.maxFileLines > 0 && f.Additions+f.Deletions > p.maxFileLines {
			severity := SeverityWarning
			if p.blockBigFiles {
				severity = SeverityBlocker
			}
			findings = append(findings, domain.PolicyFinding{
				RuleID:   "changeset/max-file-lines",
				Severity: severity,
				File:     f.Filename,
				Message:  fmt.Sprintf("%d changed lines in one file, limit is %d", f.Additions+f.Deletions, p.maxFileLines),
			})
		}

		if p.blockSecrets && matchesSecretPattern(f.Filename) {
			findings = append(findings, domain.PolicyFinding{
				RuleID:   "secrets/filename",
				Severity: SeverityBlocker,
				File:     f.Filename,
				Message:  "file name suggests credential material; do not commit secrets",
			})
		}
	}

	return findings
}

func matchesSecretPattern(filename string) bool {
	base := strings.ToLower(path.Base(filename))
	for _, pattern := range secretPatterns {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
