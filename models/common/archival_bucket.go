package common

import (
	"fmt"
	"strings"
)

// ArchivalBucket describes one bucket where archived copies live.
// The first bucket in Config.ArchivalBuckets is the primary; any
// others hold backup copies that the fixity checker also verifies.
type ArchivalBucket struct {
	Bucket      string
	Description string
	Host        string
	Provider    string
	Region      string
}

// URLFor returns the URL for the specified key. For example:
// bucket.URLFor(uuid) returns something like
// https://s3.us-east-1.amazonaws.com/esperoj-archive/uuid
// for an AWS bucket.
func (b *ArchivalBucket) URLFor(key string) string {
	return fmt.Sprintf("https://s3.%s.%s/%s/%s",
		b.Region, b.Host, b.Bucket, key)
}

// HostsURL returns true if the given URL points into this bucket.
func (b *ArchivalBucket) HostsURL(url string) bool {
	return strings.HasPrefix(url, fmt.Sprintf("https://s3.%s.%s/%s/", b.Region, b.Host, b.Bucket))
}
