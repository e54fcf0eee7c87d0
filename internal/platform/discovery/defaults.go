// Package discovery centralizes internal service-discovery conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceUser is the identity directory HTTP service identity.
	ServiceUser = "user"
	// ServiceTeam is the team directory HTTP service identity.
	ServiceTeam = "team"
	// ServiceTask is the task HTTP service identity.
	ServiceTask = "task"
)

var httpPorts = map[string]int{
	ServiceUser: 8081,
	ServiceTeam: 8082,
	ServiceTask: 8083,
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	service = strings.TrimSpace(service)
	port, ok := httpPorts[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}

// OrDefaultHTTPAddr returns value when set, otherwise the service convention.
func OrDefaultHTTPAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultHTTPAddr(service)
}

// OrDefaultHTTPBaseURL returns value when set, otherwise http://<service-host:port>.
func OrDefaultHTTPBaseURL(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	addr := DefaultHTTPAddr(service)
	if addr == "" {
		return ""
	}
	return "http://" + addr
}
