package objectstore

import "strings"

var bucketSchemes = []string{"s3://", "oss://", "mem://"}

// NormalizeKey strips a scheme://bucket/ prefix (s3, oss or mem) to return a
// bucket-relative key. Other paths are returned without a leading slash.
func NormalizeKey(path string) string {
	for _, scheme := range bucketSchemes {
		if !strings.HasPrefix(path, scheme) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(path, scheme), "/", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return strings.TrimPrefix(path, "/")
}
