package policy

import "time"

// CoolingPeriod is the mandatory delay between full approval of a critical
// action and its earliest allowed execution. Config may override it per
// deployment; tests shorten it.
var CoolingPeriod = 48 * time.Hour

// PermissionCacheTTL bounds staleness of cached role grants. Grants change
// only through administrative seeding, so a short TTL is plenty.
var PermissionCacheTTL = 5 * time.Minute
