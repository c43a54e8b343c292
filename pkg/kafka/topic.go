package kafka

import "strings"

const topicPrefix = "ecommerce"

// Topic builds a topic name of the form ecommerce.<domain>.<action>. Empty
// segments are skipped.
func Topic(domain, action string) string {
	parts := []string{topicPrefix}
	for _, p := range []string{domain, action} {
		if p = strings.Trim(p, ". "); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}
