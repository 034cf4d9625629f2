package mqtt

import (
	"net/url"
	"strings"
)

func urlPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

func joinTopic(base, topic string) string {
	base = strings.Trim(base, "/")
	topic = strings.Trim(topic, "/")
	if base == "" {
		return topic
	}
	return base + "/" + topic
}
