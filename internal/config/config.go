package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CentralConfig holds the central server connection settings
type CentralConfig struct {
	ServerURL string `json:"serverUrl"`
	AuthToken string `json:"authToken,omitempty"`
	NodeID    string `json:"nodeId,omitempty"`
}

// CameraConfig holds per-camera settings. FeaturePipe is the NDJSON
// stream the external decoder writes feature frames to.
type CameraConfig struct {
	DeviceID    string  `json:"deviceId"`
	Name        string  `json:"name"`
	RTSPUrl     string  `json:"rtspUrl"`
	FeaturePipe string  `json:"featurePipe"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	FPS         int     `json:"fps"`
	Enabled     bool    `json:"enabled"`
}

// DetectionConfig holds the classifier and alerting settings
type DetectionConfig struct {
	WindowSize      int     `json:"windowSize"`      // samples kept per camera
	Threshold       float64 `json:"threshold"`       // confidence needed to raise an alert
	CooldownSeconds int     `json:"cooldownSeconds"` // per-camera alert suppression window
	ModelPath       string  `json:"modelPath,omitempty"`
}

// NodeConfig holds the complete edge node configuration
type NodeConfig struct {
	// Identity
	NodeName  string `json:"nodeName"`
	NodeModel string `json:"nodeModel"`
	MAC       string `json:"mac"`

	// Central connection
	Central CentralConfig `json:"central"`

	// Camera assignments
	Cameras []CameraConfig `json:"cameras"`

	// Detection settings
	Detection DetectionConfig `json:"detection"`

	// Timestamps
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager handles configuration persistence and access
type Manager struct {
	configPath string
	dataDir    string
	config     *NodeConfig
	mu         sync.RWMutex
}

// NewManager creates a new config manager
func NewManager(configPath, dataDir string) (*Manager, error) {
	m := &Manager{
		configPath: configPath,
		dataDir:    dataDir,
	}

	// Ensure directories exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(m.GetQueueDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}
	if err := os.MkdirAll(m.GetEvidenceDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}

	// Load or create config
	if err := m.load(); err != nil {
		m.config = m.createDefaultConfig()
		if err := m.save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	return m, nil
}

// GetQueueDir returns the forward queue directory
func (m *Manager) GetQueueDir() string {
	return filepath.Join(m.dataDir, "queue")
}

// GetEvidenceDir returns the evidence snapshot directory
func (m *Manager) GetEvidenceDir() string {
	return filepath.Join(m.dataDir, "evidence")
}

// Get returns a copy of the current config
func (m *Manager) Get() NodeConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// GetCentral returns the central server settings
func (m *Manager) GetCentral() CentralConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Central
}

// SetCentral updates the central server settings
func (m *Manager) SetCentral(central CentralConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Central = central
	m.config.UpdatedAt = time.Now()
	return m.saveUnsafe()
}

// SetCameras updates the camera configurations
func (m *Manager) SetCameras(cameras []CameraConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Cameras = cameras
	m.config.UpdatedAt = time.Now()
	return m.saveUnsafe()
}

// SetDetection updates the detection settings
func (m *Manager) SetDetection(det DetectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Detection = det
	m.config.UpdatedAt = time.Now()
	return m.saveUnsafe()
}

// IsConfigured returns true if the node knows its central server
func (m *Manager) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Central.ServerURL != ""
}

// load reads config from file
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg NodeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}

	m.config = &cfg
	return nil
}

// save writes config to file (must hold lock)
func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnsafe()
}

// saveUnsafe writes config to file (caller must hold lock)
func (m *Manager) saveUnsafe() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

// createDefaultConfig creates a new default configuration
func (m *Manager) createDefaultConfig() *NodeConfig {
	hostname, _ := os.Hostname()

	return &NodeConfig{
		NodeName:  hostname,
		NodeModel: detectNodeModel(),
		MAC:       getMACAddress(),
		Central:   CentralConfig{},
		Cameras:   []CameraConfig{},
		Detection: DetectionConfig{
			WindowSize:      50,
			Threshold:       0.90,
			CooldownSeconds: 300,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// getMACAddress returns the primary MAC address
func getMACAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "unknown"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if iface.Name == "docker0" {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return "unknown"
}

// detectNodeModel detects the hardware model
func detectNodeModel() string {
	data, err := os.ReadFile("/proc/device-tree/model")
	if err == nil {
		return string(data)
	}
	if _, err := os.Stat("/sys/devices/soc0/family"); err == nil {
		return "NVIDIA Jetson"
	}
	return "Generic Linux"
}
