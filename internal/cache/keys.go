package cache

import (
	"strconv"
)

// 与原站点共享的键名前缀，Redis 中的既有数据可以直接复用。
const (
	PageContentPrefix = "page_content_"
	PageBlockPrefix   = "page_block_"
	SiteDataPrefix    = "site_data_"
	PostsPrefix       = "posts_"
	CategoriesPrefix  = "categories_"
	TagsPrefix        = "tags_"
)

// 批量清理使用的模式族。
const (
	PatternSiteData    = SiteDataPrefix + "*"
	PatternPageContent = PageContentPrefix + "*"
	PatternPageBlock   = PageBlockPrefix + "*"
	PatternPosts       = PostsPrefix + "*"
	PatternCategories  = CategoriesPrefix + "*"
	PatternTags        = TagsPrefix + "*"
)

// PageContentKey 返回规范化页面内容的键；slice <= 0 时写作 undefined，与旧键保持一致。
func PageContentKey(pageID string, slice int) string {
	suffix := "undefined"
	if slice > 0 {
		suffix = strconv.Itoa(slice)
	}
	return PageContentPrefix + pageID + "_" + suffix
}

// PageBlockKey 返回原始页面快照的键。
func PageBlockKey(pageID string) string {
	return PageBlockPrefix + pageID
}

// CronPatterns 是定时清理覆盖的模式。
func CronPatterns() []string {
	return []string{PatternSiteData, PatternPageContent, PatternPageBlock}
}

// WebhookPatterns 是内容更新 webhook 覆盖的模式。
func WebhookPatterns() []string {
	return append(CronPatterns(), PatternPosts, PatternCategories, PatternTags)
}
