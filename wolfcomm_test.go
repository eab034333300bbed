package wolfcomm

import (
	"os"
	"testing"
)

// The tests in this file talk to the real portal and require WOLF_USERNAME
// and WOLF_PASSWORD to be set. They are skipped otherwise.

func integrationClient(t *testing.T) *Client {
	t.Helper()
	username := os.Getenv("WOLF_USERNAME")
	password := os.Getenv("WOLF_PASSWORD")
	if username == "" || password == "" {
		t.Skip("Skipping integration test: WOLF_USERNAME and/or WOLF_PASSWORD not set")
	}

	client, err := NewClient(username, password)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestIntegrationListDevices(t *testing.T) {
	client := integrationClient(t)

	devices, err := client.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) == 0 {
		t.Fatal("Expected at least one device, but got none")
	}

	t.Logf("Successfully listed %d devices:", len(devices))
	for _, device := range devices {
		t.Logf("  - ID: %d, GatewayID: %d, Name: %s", device.ID, device.GatewayID, device.Name)
	}
}

func TestIntegrationSystemState(t *testing.T) {
	client := integrationClient(t)

	devices, err := client.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices failed during setup: %v", err)
	}
	if len(devices) == 0 {
		t.Fatal("No devices found to test GetSystemState")
	}

	device := devices[0]
	online, err := client.GetSystemState(device.ID, device.GatewayID)
	if err != nil {
		t.Fatalf("GetSystemState failed: %v", err)
	}
	t.Logf("Device %s online: %t", device.Name, online)
}

func TestIntegrationParameterValues(t *testing.T) {
	client := integrationClient(t)
	defer func() {
		if err := client.CloseSystem(); err != nil {
			t.Logf("CloseSystem failed: %v", err)
		}
	}()

	devices, err := client.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices failed during setup: %v", err)
	}
	if len(devices) == 0 {
		t.Fatal("No devices found to test parameter values")
	}

	device := devices[0]
	t.Logf("Fetching parameters for device ID %d (Name: %s)", device.ID, device.Name)

	params, err := client.GetParameters(device.GatewayID, device.ID)
	if err != nil {
		t.Fatalf("GetParameters failed: %v", err)
	}
	if len(params) == 0 {
		t.Fatal("Expected at least one parameter, but got none")
	}
	t.Logf("Found %d parameters", len(params))
	for i, p := range params {
		if i >= 10 {
			t.Logf("  ... and %d more", len(params)-10)
			break
		}
		t.Logf("  - %d: %s (%s, unit %q, bundle %d)", p.ValueID, p.Name, p.Kind, p.Unit(), p.BundleID)
	}

	values, err := client.GetParameterValues(device.GatewayID, device.ID, params)
	if err != nil {
		t.Fatalf("GetParameterValues failed: %v", err)
	}
	t.Logf("Fetched %d values", len(values))
	for i, v := range values {
		if i >= 10 {
			t.Logf("  ... and %d more", len(values)-10)
			break
		}
		t.Logf("  - %d = %s (state %q)", v.ValueID, v.Value, v.State)
	}
	if client.LastFailed() {
		t.Error("LastFailed = true after successful fetches")
	}
}
