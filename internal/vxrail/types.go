// Package vxrail provides a client for the VxRail Manager REST API.
package vxrail

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Credentials identify a VxRail Manager and the account used against it.
// Secret is never included in String, log or JSON output.
type Credentials struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Secret   string `json:"-"`
}

// String returns "username@host".
func (c Credentials) String() string {
	return c.Username + "@" + c.Host
}

// GoString keeps %#v from printing the secret.
func (c Credentials) GoString() string {
	return "vxrail.Credentials{" + c.String() + "}"
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("host", c.Host)
	enc.AddString("username", c.Username)
	return nil
}

// Complete reports whether every field needed to authenticate is set.
func (c Credentials) Complete() bool {
	return c.Host != "" && c.Username != "" && c.Secret != ""
}

// Call is a single endpoint invocation. Building one performs no I/O.
type Call struct {
	Method string
	Path   string
	Body   any // Marshalled as JSON when non-nil
}

// Get builds a GET call.
func Get(path string) Call {
	return Call{Method: http.MethodGet, Path: path}
}

// Post builds a POST call with an optional JSON body.
func Post(path string, body any) Call {
	return Call{Method: http.MethodPost, Path: path, Body: body}
}

// String returns "METHOD /path".
func (c Call) String() string {
	return c.Method + " " + c.Path
}

// Endpoint paths used by vxh.
const (
	PathSystem         = "/v3/system"
	PathHosts          = "/v7/hosts"
	PathDisks          = "/v1/disks"
	PathChassis        = "/v4/chassis"
	PathSupportAccount = "/v1/support/account"
	PathSystemPrecheck = "/v1/system/precheck"
	PathLCMPrecheck    = "/v1/lcm/precheck"
)

// RequestPath returns the status resource for a long-running request.
func RequestPath(requestID string) string {
	return "/v1/requests/" + requestID
}

// PrecheckResultPath returns the detailed result resource of a pre-check.
func PrecheckResultPath(requestID string) string {
	return "/v1/system/prechecks/" + requestID + "/result"
}

// SystemInfo is the subset of /v3/system that vxh reads.
type SystemInfo struct {
	Version           string            `json:"version,omitempty"`
	Health            string            `json:"health,omitempty"`
	OperationalStatus string            `json:"operational_status,omitempty"`
	ClusterInfo       *ClusterInfo      `json:"cluster_info,omitempty"`
	Network           *NetworkInfo      `json:"network,omitempty"`
	HealthComponents  []HealthComponent `json:"health_components,omitempty"`
}

// ClusterInfo describes the vSphere cluster behind the manager.
type ClusterInfo struct {
	ClusterName    string `json:"cluster_name,omitempty"`
	DatacenterName string `json:"datacenter_name,omitempty"`
	VCVersion      string `json:"vc_version,omitempty"`
}

// NetworkInfo describes the cluster network.
type NetworkInfo struct {
	Mode string `json:"mode,omitempty"`
}

// HealthComponent is one entry of system health_components.
type HealthComponent struct {
	Name   string `json:"name,omitempty"`
	Health string `json:"health,omitempty"`
}

// Host is the subset of a /v7/hosts record that vxh reads.
type Host struct {
	Hostname     string `json:"hostname,omitempty"`
	HostName     string `json:"host_name,omitempty"` // Older field name
	Health       string `json:"health,omitempty"`
	PowerStatus  string `json:"power_status,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Model        string `json:"model,omitempty"`
	ManagementIP string `json:"management_ip,omitempty"`
	Disks        []Disk `json:"disks,omitempty"`
}

// Name returns the host's name, falling back to its serial number.
func (h Host) Name() string {
	switch {
	case h.Hostname != "":
		return h.Hostname
	case h.HostName != "":
		return h.HostName
	default:
		return h.SerialNumber
	}
}

// Disk is the subset of a disk record (flat or host-nested) that vxh reads.
type Disk struct {
	SN           string          `json:"sn,omitempty"`
	SerialNumber string          `json:"serial_number,omitempty"`
	DiskState    string          `json:"disk_state,omitempty"`
	DiskType     string          `json:"disk_type,omitempty"`
	Slot         json.RawMessage `json:"slot,omitempty"`
	Capacity     json.RawMessage `json:"capacity,omitempty"`
}

// Serial returns the disk serial number from whichever field is present.
func (d Disk) Serial() string {
	if d.SN != "" {
		return d.SN
	}
	return d.SerialNumber
}

// CapacityValue returns the numeric capacity if the server sent a number.
func (d Disk) CapacityValue() (float64, bool) {
	raw := strings.TrimSpace(string(d.Capacity))
	if raw == "" || raw == "null" || strings.HasPrefix(raw, `"`) {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Chassis is the subset of a /v4/chassis record that vxh reads.
type Chassis struct {
	ID           string `json:"id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Model        string `json:"model,omitempty"`
	Health       string `json:"health,omitempty"`
}

// SupportAccount is the /v1/support/account response.
type SupportAccount struct {
	Status   string `json:"status,omitempty"`
	Username string `json:"username,omitempty"`
}

// SubmitResponse is returned by endpoints that start a long-running request.
type SubmitResponse struct {
	RequestID string `json:"request_id,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Handle returns the request id from whichever field is present.
func (r SubmitResponse) Handle() string {
	if id := strings.TrimSpace(r.RequestID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ID)
}

// RequestStatus is the /v1/requests/{id} response.
type RequestStatus struct {
	ID       string          `json:"id,omitempty"`
	State    string          `json:"state,omitempty"`
	Progress *int            `json:"progress,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
}
