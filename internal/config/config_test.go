package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to write a file into a temp dir
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ---- tests ----

func TestParseDevices_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"10.0.0.1,core-sw1",
		"garbage",
		"10.0.0.2,core-sw2,extra",
		"",
		"  10.0.0.3 , access-sw3  ",
		"10.0.0.1,duplicate",
		",unnamed-port",
	}, "\n")

	devices, err := ParseDevices(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d: %+v", len(devices), devices)
	}
	if devices[0].IP != "10.0.0.1" || devices[0].Name != "core-sw1" {
		t.Fatalf("unexpected first device: %+v", devices[0])
	}
	if devices[1].IP != "10.0.0.3" || devices[1].Name != "access-sw3" {
		t.Fatalf("unexpected second device: %+v", devices[1])
	}
	// two fields with an empty address is still a device; it probes as down
	if devices[2].IP != "" || devices[2].Name != "unnamed-port" {
		t.Fatalf("unexpected third device: %+v", devices[2])
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "switches.txt", "10.0.0.1,core-sw1\n")
	cfgPath := writeFile(t, dir, "config.yaml", "devices_file: "+devices+"\n")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IntervalSeconds != 1 {
		t.Fatalf("expected default interval 1s, got %d", cfg.IntervalSeconds)
	}
	if cfg.Probe.Kind != ProbeICMP || cfg.Probe.TimeoutMs != 1000 {
		t.Fatalf("unexpected probe defaults: %+v", cfg.Probe)
	}
	if cfg.Web.HistoryLimit != 100 {
		t.Fatalf("expected history limit 100, got %d", cfg.Web.HistoryLimit)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(cfg.Devices))
	}
}

func TestLoad_MaxRecordsCoversHistoryLimit(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "switches.txt", "10.0.0.1,core-sw1\n")

	cases := []struct {
		name string
		yaml string
		want int
	}{
		{"default", "", 10000},
		{"explicit", "storage:\n  max_records: 500\n", 500},
		{"raised to history limit", "storage:\n  max_records: 10\nweb:\n  history_limit: 250\n", 250},
	}
	for _, tc := range cases {
		cfgPath := writeFile(t, dir, "config.yaml", "devices_file: "+devices+"\n"+tc.yaml)
		cfg, err := Load(cfgPath)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if cfg.Storage.MaxRecords != tc.want {
			t.Fatalf("%s: max_records=%d want %d", tc.name, cfg.Storage.MaxRecords, tc.want)
		}
	}
}

func TestLoad_MissingDeviceListIsFatal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "devices_file: "+filepath.Join(dir, "nope.txt")+"\n")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for missing device list")
	}
}

func TestLoad_EmptyDeviceListIsFatal(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "switches.txt", "not a device\n")
	cfgPath := writeFile(t, dir, "config.yaml", "devices_file: "+devices+"\n")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for device list without valid lines")
	}
}

func TestLoad_SNMPCredentials(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "switches.txt", "10.0.0.1,core-sw1\n")

	cases := []struct {
		name    string
		snmp    string
		wantErr bool
	}{
		{"missing user", "user: \"\"", true},
		{"authPriv without priv key", "user: mon\n    auth_key: a\n    security_level: authPriv", true},
		{"authPriv complete", "user: mon\n    auth_key: a\n    priv_key: p", false},
		{"authNoPriv", "user: mon\n    auth_key: a\n    security_level: authNoPriv", false},
		{"unknown level", "user: mon\n    security_level: bogus", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content := "devices_file: " + devices + "\n" +
				"probe:\n  kind: snmp\n  snmp:\n    " + tc.snmp + "\n"
			cfgPath := writeFile(t, dir, "config.yaml", content)

			cfg, err := Load(cfgPath)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if cfg.Probe.SNMP.OID != DefaultSNMPOID {
					t.Fatalf("expected default oid, got %q", cfg.Probe.SNMP.OID)
				}
			}
		})
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "switches.txt", "10.0.0.1,core-sw1\n")
	cfgPath := writeFile(t, dir, "config.yaml", "devices_file: "+devices+"\nstorage:\n  driver: postgres\n")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for unknown storage driver")
	}
}
