package common

import "strings"

// ServiceType identifies the kind of remote media-management service a
// template or instance belongs to.
type ServiceType string

const (
	ServiceRadarr ServiceType = "RADARR"
	ServiceSonarr ServiceType = "SONARR"
)

// ParseServiceType normalizes a free-form service name. The zero value is
// returned for unknown input.
func ParseServiceType(s string) ServiceType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RADARR":
		return ServiceRadarr
	case "SONARR":
		return ServiceSonarr
	}
	return ""
}

// Equal compares service types case-insensitively.
func (s ServiceType) Equal(other ServiceType) bool {
	return strings.EqualFold(string(s), string(other))
}

// ConfigType identifies a category of upstream guide definitions held in the
// cache, keyed together with the service type.
type ConfigType string

const (
	ConfigCustomFormats       ConfigType = "CUSTOM_FORMATS"
	ConfigCustomFormatGroups  ConfigType = "CUSTOM_FORMAT_GROUPS"
	ConfigQualityProfiles     ConfigType = "QUALITY_PROFILES"
)

// AllConfigTypes lists every config type a full refresh must cover.
var AllConfigTypes = []ConfigType{
	ConfigCustomFormats,
	ConfigCustomFormatGroups,
	ConfigQualityProfiles,
}
