package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"switchmonitor/internal/models"
)

// LoadDevices reads a device list file of "<ip>,<name>" lines.
func LoadDevices(path string) ([]models.Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open device list: %w", err)
	}
	defer f.Close()

	devices, err := ParseDevices(f)
	if err != nil {
		return nil, fmt.Errorf("read device list: %w", err)
	}
	return devices, nil
}

// ParseDevices parses "<ip>,<name>" lines in file order. Lines that do not
// split into exactly two fields are skipped.
func ParseDevices(r io.Reader) ([]models.Device, error) {
	var devices []models.Device
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), ",")
		if len(parts) != 2 {
			continue
		}
		ip := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		// first occurrence wins; state is keyed by ip
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		devices = append(devices, models.Device{IP: ip, Name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}
