// Package suggest derives a category and tags from memory content and an
// optional source file path.
package suggest

import (
	"path"
	"sort"
	"strings"

	"github.com/rcliao/team-memory/internal/model"
)

// MetadataFileKey is the metadata key carrying the source file path.
const MetadataFileKey = "file"

// Suggestion is the output of Suggest.
type Suggestion struct {
	Category model.Category
	Tags     []string
}

// Suggest returns a suggested category (possibly unset) and a sorted,
// capped tag list for content.
func Suggest(content, filePath string) Suggestion {
	return Suggestion{
		Category: Category(content, filePath),
		Tags:     Tags(content, filePath),
	}
}

type rule struct {
	category model.Category
	words    []string
}

// Content rules are checked in order; the first hit wins.
var contentRules = []rule{
	{model.CategorySecurity, []string{"セキュリティ", "security", "認証", "authentication", "auth", "暗号", "encrypt", "jwt", "oauth"}},
	{model.CategoryDatabase, []string{"データベース", "database", "db", "sql", "postgres", "mysql", "mongodb", "redis", "マイグレーション"}},
	{model.CategoryAPI, []string{"api", "エンドポイント", "endpoint", "rest", "graphql", "grpc"}},
	{model.CategoryArchitecture, []string{"アーキテクチャ", "architecture", "設計", "design", "パターン", "pattern"}},
	{model.CategoryUI, []string{"ui", "ux", "デザイン", "レイアウト", "スタイル", "css"}},
	{model.CategoryTest, []string{"テスト", "test", "testing", "pytest", "jest", "unittest"}},
	{model.CategoryInfra, []string{"インフラ", "infrastructure", "deploy", "デプロイ", "ci/cd", "pipeline"}},
	{model.CategoryFrontend, []string{"フロントエンド", "frontend", "react", "vue", "angular", "next.js", "コンポーネント"}},
	{model.CategoryBackend, []string{"バックエンド", "backend", "サーバー", "server", "fastapi", "django", "flask"}},
}

// Category guesses a category from the file path first, then content.
func Category(content, filePath string) model.Category {
	if c := categoryFromPath(strings.ToLower(filePath)); c.IsSet() {
		return c
	}
	lower := strings.ToLower(content)
	for _, r := range contentRules {
		if containsAny(lower, r.words...) {
			return r.category
		}
	}
	return model.CategoryUnset
}

func categoryFromPath(p string) model.Category {
	if p == "" {
		return model.CategoryUnset
	}
	switch {
	case containsAny(p, "/test", "_test.", "test_", ".test."):
		return model.CategoryTest
	case strings.HasSuffix(p, ".md") || containsAny(p, "/docs/", "readme"):
		return model.CategoryDocs
	case containsAny(p, "/components/", "/pages/", "/views/", "/src/app/"):
		return model.CategoryFrontend
	case hasAnySuffix(p, ".tsx", ".jsx", ".vue", ".svelte"):
		return model.CategoryFrontend
	case containsAny(p, "/api/", "/server/", "/backend/", "/routes/"):
		return model.CategoryBackend
	case containsAny(p, "docker", "compose"):
		return model.CategoryInfra
	}
	return model.CategoryUnset
}

type keyword struct {
	pattern, tag string
}

var keywords = []keyword{
	{"python", "python"}, {"javascript", "javascript"}, {"typescript", "typescript"},
	{"golang", "go"},
	{"react", "react"}, {"vue", "vue"}, {"next.js", "nextjs"}, {"nuxt", "nuxt"},
	{"fastapi", "fastapi"}, {"django", "django"}, {"flask", "flask"},
	{"postgresql", "postgresql"}, {"postgres", "postgresql"}, {"mysql", "mysql"},
	{"mongodb", "mongodb"}, {"redis", "redis"}, {"sqlite", "sqlite"},
	{"docker", "docker"}, {"kubernetes", "kubernetes"}, {"k8s", "kubernetes"},
	{"aws", "aws"}, {"gcp", "gcp"}, {"azure", "azure"},
	{"jwt", "jwt"}, {"oauth", "oauth"}, {"api", "api"}, {"rest", "rest"},
	{"graphql", "graphql"}, {"websocket", "websocket"},
	{"認証", "auth"}, {"authentication", "auth"}, {"authorization", "auth"},
	{"キャッシュ", "cache"}, {"cache", "cache"},
	{"ログ", "logging"}, {"logging", "logging"},
	{"エラー", "error"}, {"error", "error"},
	{"パフォーマンス", "performance"}, {"performance", "performance"},
}

var stopParts = map[string]bool{"the": true, "and": true, "for": true, "test": true, "spec": true}

// Tags extracts tags from the file name and known keywords, sorted and
// capped at model.MaxTags.
func Tags(content, filePath string) []string {
	set := map[string]bool{}
	if filePath != "" {
		name := strings.ToLower(path.Base(filePath))
		if i := strings.LastIndex(name, "."); i > 0 {
			name = name[:i]
		}
		for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' }) {
			if len(part) >= 3 && !stopParts[part] {
				set[part] = true
			}
		}
	}
	lower := strings.ToLower(content)
	for _, k := range keywords {
		if strings.Contains(lower, k.pattern) {
			set[k.tag] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) > model.MaxTags {
		out = out[:model.MaxTags]
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
