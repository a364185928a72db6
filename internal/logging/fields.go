package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 描述一次上游抓取尝试：页面、调用来源与剩余尝试次数。
func FetchFields(pageID, from string, remaining int) logrus.Fields {
	return logrus.Fields{
		"action":    "fetch_page",
		"page_id":   pageID,
		"from":      from,
		"remaining": remaining,
	}
}

// CacheFields 提供缓存层与键名字段，供 tier 级别的告警日志复用。
func CacheFields(tier, key string) logrus.Fields {
	return logrus.Fields{
		"action": "cache",
		"tier":   tier,
		"key":    key,
	}
}

// RequestFields 提供 HTTP 请求字段，供失效接口与页面接口的日志复用。
func RequestFields(method, path, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"method": method,
		"path":   path,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
