package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const githubAPIBase = "https://api.github.com"

// versionChecker polls a GitHub repository for a new head commit. The
// SHA observed on the first successful poll is the running baseline; a
// later mismatch means a deploy is pending.
type versionChecker struct {
	repo     string
	token    string
	apiBase  string
	client   *http.Client
	logger   *zap.Logger
	baseline string
}

func newVersionChecker(repo, token string, logger *zap.Logger) *versionChecker {
	return &versionChecker{
		repo:    repo,
		token:   token,
		apiBase: githubAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Check fetches the repository head. It reports changed=true once the
// head differs from the baseline, along with the short SHA.
func (v *versionChecker) Check(ctx context.Context) (bool, string, error) {
	sha, err := v.fetchHead(ctx)
	if err != nil {
		return false, "", err
	}
	if v.baseline == "" {
		v.baseline = sha
		v.logger.Info("version baseline captured", zap.String("sha", shortSHA(sha)))
		return false, shortSHA(sha), nil
	}
	return sha != v.baseline, shortSHA(sha), nil
}

func (v *versionChecker) fetchHead(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/commits?per_page=1", v.apiBase, v.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("commits endpoint returned %s", resp.Status)
	}

	var commits []struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return "", err
	}
	if len(commits) == 0 || commits[0].SHA == "" {
		return "", fmt.Errorf("no commits in response")
	}
	return commits[0].SHA, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
