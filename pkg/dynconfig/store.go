// Package dynconfig implements ConfigStore (spec.md §4.1): DB-backed
// prompts, settings, and project routing, each with its own in-process
// TTL cache and a compiled-in fallback.
//
// Grounded on the teacher's pkg/runbook.Cache (lazy double-checked-lock
// TTL expiry) and axonflow's per-tenant ConfigCache/CacheEntry[T]
// pattern (see cache.go), plus the teacher's BuiltinConfig singleton
// idiom (see builtin.go) for compiled-in fallbacks.
package dynconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/codeready-toolchain/logforensics/ent"
	"github.com/codeready-toolchain/logforensics/ent/contextrule"
	"github.com/codeready-toolchain/logforensics/ent/project"
	"github.com/codeready-toolchain/logforensics/ent/promptrecord"
	"github.com/codeready-toolchain/logforensics/ent/settingrecord"
)

const (
	defaultPromptTTL  = 5 * time.Minute
	defaultSettingTTL = 10 * time.Minute
	defaultProjectTTL = 10 * time.Minute
	defaultRulesTTL   = 10 * time.Minute

	contextRuleCacheKey = "__all__"
)

// ContextRule is the resolved view of a context rule record consulted
// by VerifyAgent, independent of its ent storage shape.
type ContextRule struct {
	Name        string
	Description string
	Kind        string
	Params      map[string]interface{}
	Priority    int
}

// Bucket identifies which TTL cache Invalidate clears.
type Bucket string

const (
	BucketPrompts  Bucket = "prompts"
	BucketSettings Bucket = "settings"
	BucketProjects Bucket = "projects"
	BucketRules    Bucket = "rules"
)

// Flags are the three feature flags gating DB-backed lookups. Read once
// per cache fill, per spec.md §4.1.
type Flags struct {
	UseDBPrompts  bool
	UseDBSettings bool
	UseDBProjects bool
}

// ConfigStore is the dynamic configuration layer consulted by the
// orchestrator and agents.
type ConfigStore struct {
	db    *ent.Client
	flags Flags

	prompts  *ttlCache[string]
	settings *ttlCache[string]
	projects *ttlCache[Project]
	rules    *ttlCache[[]ContextRule]
}

// New builds a ConfigStore backed by db with the given feature flags.
func New(db *ent.Client, flags Flags) *ConfigStore {
	return &ConfigStore{
		db:       db,
		flags:    flags,
		prompts:  newTTLCache[string](defaultPromptTTL),
		settings: newTTLCache[string](defaultSettingTTL),
		projects: newTTLCache[Project](defaultProjectTTL),
		rules:    newTTLCache[[]ContextRule](defaultRulesTTL),
	}
}

// GetContextRules returns the enabled context rules VerifyAgent
// consults, ordered by descending priority. With USE_DB_PROJECTS off (or
// no rule records present) it returns an empty set — VerifyAgent then
// falls back to its own relevance scoring with no rule-based overrides.
func (c *ConfigStore) GetContextRules(ctx context.Context) ([]ContextRule, error) {
	if !c.flags.UseDBProjects {
		return nil, nil
	}

	return c.rules.getOrFill(contextRuleCacheKey, func() ([]ContextRule, error) {
		recs, err := c.db.ContextRule.Query().
			Where(contextrule.Enabled(true)).
			All(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynconfig: query context rules: %w", err)
		}
		rules := make([]ContextRule, 0, len(recs))
		for _, r := range recs {
			rules = append(rules, ContextRule{
				Name:        r.Name,
				Description: r.Description,
				Kind:        string(r.Kind),
				Params:      r.Params,
				Priority:    r.Priority,
			})
		}
		sort.Slice(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
		return rules, nil
	})
}

// GetPrompt returns the active template for name, or the compiled-in
// fallback if the DB has no active record (or USE_DB_PROMPTS is off).
func (c *ConfigStore) GetPrompt(ctx context.Context, name string) (string, error) {
	if !c.flags.UseDBPrompts {
		return c.builtinPrompt(name), nil
	}

	return c.prompts.getOrFill(name, func() (string, error) {
		rec, err := c.db.PromptRecord.Query().
			Where(promptrecord.ProjectCode(""), promptrecord.Name(name), promptrecord.Active(true)).
			Only(ctx)
		if ent.IsNotFound(err) {
			return c.builtinPrompt(name), nil
		}
		if err != nil {
			return "", fmt.Errorf("dynconfig: query prompt %q: %w", name, err)
		}
		return rec.Body, nil
	})
}

func (c *ConfigStore) builtinPrompt(name string) string {
	return GetBuiltinConfig().Prompts[name]
}

// GetSetting returns the string value of the (projectCode, category, key)
// setting record, or typedDefault when USE_DB_SETTINGS is off, the record
// is absent, or the lookup fails (a failed lookup also logs a warning).
// GetSettingInt and GetSettingBool decode the value on top of this.
//
// On a cache miss, every sibling key in (projectCode, category) is
// populated in the same pass — "populate all sibling keys when cheap to
// do so", per spec.md §4.1.
func (c *ConfigStore) GetSetting(ctx context.Context, projectCode, category, key string, typedDefault string) string {
	if !c.flags.UseDBSettings {
		return typedDefault
	}

	cacheKey := projectCode + "|" + category + "|" + key
	if v, ok := c.settings.get(cacheKey); ok {
		return v
	}
	// fillCategorySiblings writes through settings.set, which takes the
	// cache lock itself, so it runs here rather than inside getOrFill.
	if err := c.fillCategorySiblings(ctx, projectCode, category); err != nil {
		slog.Warn("dynconfig: setting lookup failed, using default", "category", category, "key", key, "error", err)
		return typedDefault
	}
	if v, ok := c.settings.get(cacheKey); ok {
		return v
	}
	return typedDefault
}

// GetSettingInt parses the setting value as an int, falling back on decode failure.
func (c *ConfigStore) GetSettingInt(ctx context.Context, projectCode, category, key string, typedDefault int) int {
	raw := c.GetSetting(ctx, projectCode, category, key, strconv.Itoa(typedDefault))
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("dynconfig: malformed int setting, using default", "category", category, "key", key, "value", raw)
		return typedDefault
	}
	return n
}

// GetSettingBool parses the setting value as a bool, falling back on decode failure.
func (c *ConfigStore) GetSettingBool(ctx context.Context, projectCode, category, key string, typedDefault bool) bool {
	raw := c.GetSetting(ctx, projectCode, category, key, strconv.FormatBool(typedDefault))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("dynconfig: malformed bool setting, using default", "category", category, "key", key, "value", raw)
		return typedDefault
	}
	return b
}

func (c *ConfigStore) fillCategorySiblings(ctx context.Context, projectCode, category string) error {
	recs, err := c.db.SettingRecord.Query().
		Where(settingrecord.ProjectCode(projectCode), settingrecord.Category(category)).
		All(ctx)
	if err != nil {
		return fmt.Errorf("dynconfig: query settings category %q: %w", category, err)
	}
	for _, r := range recs {
		c.settings.set(projectCode+"|"+category+"|"+r.Key, r.Value)
	}
	return nil
}

// GetProject returns the project record for code, or the compiled-in
// default for one of the four built-in project codes. A project loaded
// from the database always has LogSourceType "file": the project table
// has no routing column.
func (c *ConfigStore) GetProject(ctx context.Context, code string) (Project, error) {
	if !c.flags.UseDBProjects {
		return c.builtinProject(code)
	}

	return c.projects.getOrFill(code, func() (Project, error) {
		rec, err := c.db.Project.Query().Where(project.Code(code)).Only(ctx)
		if ent.IsNotFound(err) {
			return c.builtinProject(code)
		}
		if err != nil {
			return Project{}, fmt.Errorf("dynconfig: query project %q: %w", code, err)
		}
		return Project{Code: rec.Code, Name: rec.DisplayName, LogSourceType: "file"}, nil
	})
}

func (c *ConfigStore) builtinProject(code string) (Project, error) {
	p, ok := GetBuiltinConfig().Projects[code]
	if !ok {
		return Project{}, fmt.Errorf("dynconfig: unknown project code %q", code)
	}
	return p, nil
}

// IsFileBased reports whether code routes to the file LogBackend adapter.
func (c *ConfigStore) IsFileBased(ctx context.Context, code string) (bool, error) {
	p, err := c.GetProject(ctx, code)
	if err != nil {
		return false, err
	}
	return p.LogSourceType == "file", nil
}

// IsRemoteBased reports whether code routes to the remote LogBackend adapter.
func (c *ConfigStore) IsRemoteBased(ctx context.Context, code string) (bool, error) {
	p, err := c.GetProject(ctx, code)
	if err != nil {
		return false, err
	}
	return p.LogSourceType == "remote", nil
}

// Invalidate clears the in-process TTL cache for bucket.
func (c *ConfigStore) Invalidate(bucket Bucket) {
	switch bucket {
	case BucketPrompts:
		c.prompts.invalidateAll()
	case BucketSettings:
		c.settings.invalidateAll()
	case BucketProjects:
		c.projects.invalidateAll()
	case BucketRules:
		c.rules.invalidateAll()
	}
}
