// Package validate classifies the sources that contradict a claim.
package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/antibody/internal/model"
)

// AuthorityClassifier maps source URLs to authority tiers.
// Tiers are informational: they never affect whether a source contradicts a claim.
type AuthorityClassifier struct {
	domainMap map[string]model.AuthorityTier
	primary   []string
	secondary []string
}

// NewAuthorityClassifier creates a classifier; nil config uses the defaults
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		defaults := model.DefaultConfig().Authority
		config = &defaults
	}

	c := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
	}
	for host, tier := range config.DomainMap {
		c.domainMap[normalizeHost(host)] = model.ParseAuthorityTier(strings.ToLower(tier))
	}
	for _, d := range config.PrimaryDomains {
		c.primary = append(c.primary, normalizeHost(d))
	}
	for _, d := range config.SecondaryDomains {
		c.secondary = append(c.secondary, normalizeHost(d))
	}
	return c
}

// Classify returns the tier for a URL. Unparseable or host-less URLs are unknown.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return model.TierUnknown
	}
	host := normalizeHost(parsed.Hostname())

	// Explicit mappings win, including unknown ones
	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	if matchesDomain(host, a.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondary) {
		return model.TierSecondary
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Annotate sets the authority tier on each source in place
func (a *AuthorityClassifier) Annotate(sources []model.ContradictingSource) {
	for i := range sources {
		sources[i].Authority = a.Classify(sources[i].URL)
	}
}

func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}
