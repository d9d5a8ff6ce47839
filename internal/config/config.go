// Package config defines service configuration structures and loading.
//
// Conventions follow the rest of the repo: defaults come from New, a YAML
// file and ENGAGE_-prefixed environment variables layer on top, and
// external errors are wrapped via this package's sentinels.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BaseURL is the analytics (Discourse) instance the reports run on.
	BaseURL string `koanf:"base_url"`

	// APIKey and APIUsername authenticate report requests.
	APIKey      string `koanf:"api_key"`
	APIUsername string `koanf:"api_username"`

	// ReportGroup names the analytics group owning the report queries.
	ReportGroup string `koanf:"report_group"`

	// OrgDomain filters the organization-wide engagement feed.
	OrgDomain string `koanf:"org_domain"`

	// PageDelayMS is the fixed delay between report pages.
	PageDelayMS int `koanf:"page_delay_ms"`

	// RateLimitRetries bounds 429 retries per page; RetryIntervalMS is the
	// linear backoff base (attempt n waits n * interval).
	RateLimitRetries int `koanf:"rate_limit_retries"`
	RetryIntervalMS  int `koanf:"retry_interval_ms"`

	// RequestTimeoutMS bounds a single report page request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// IrrelevantCategoryIDs are category ids excluded from the catalogue
	// (archived and administrative categories).
	IrrelevantCategoryIDs []int64 `koanf:"irrelevant_category_ids"`

	// CourseWeights and OverallWeights are the versioned score weight
	// tables. Scores are always recomputed from raw metrics, so changing
	// a weight takes effect on the next recompute with no migration.
	CourseWeights  map[string]float64 `koanf:"course_weights"`
	OverallWeights map[string]float64 `koanf:"overall_weights"`

	// AlertWebhookURL receives {"text": ...} failure notifications.
	AlertWebhookURL string `koanf:"alert_webhook_url"`

	// RefreshSchedule is the daily cron spec for the scheduled jobs.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// TermsToKeep is how many terms the dataset retains (current + N-1).
	TermsToKeep int `koanf:"terms_to_keep"`
}

// defaultIrrelevantCategoryIDs excludes archived and administrative
// categories from the course catalogue.
var defaultIrrelevantCategoryIDs = []int64{
	49, 50, 51, 52, 63, 64, 79, 80, 86, 87, 88, 91, 95, 96, 97,
	102, 103, 104, 105, 106, 107, 112, 113, 114, 120, 121,
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":8080",
		ReportGroup:           "discourse_analytics",
		PageDelayMS:           1200,
		RateLimitRetries:      5,
		RetryIntervalMS:       3000,
		RequestTimeoutMS:      90_000,
		IrrelevantCategoryIDs: append([]int64(nil), defaultIrrelevantCategoryIDs...),
		CourseWeights: map[string]float64{
			"likes_given":       0.3,
			"likes_received":    0.8,
			"created_new_topic": 0.5,
			"replied":           0.7,
			"solved_a_topic":    10,
		},
		OverallWeights: map[string]float64{
			"likes_given":    0.4,
			"likes_received": 0.8,
			"topics_created": 0.4,
			"posts_created":  0.7,
			"days_visited":   0.3,
			"solutions":      3,
		},
		RefreshSchedule: "30 3 * * *",
		TermsToKeep:     3,
	}
}
