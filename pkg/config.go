package rqproc

import (
	"encoding/json"
	"fmt"
	"os"
)

// DistributionConfig selects a parametric family for a simulated quantity.
// Gaussian params are (mean, sigma); uniform params are (min, max).
type DistributionConfig struct {
	Family string    `json:"family"`
	Params []float64 `json:"params"`
}

type Configuration struct {
	Verbosity  int  `json:"verbosity"`
	NumWorkers int  `json:"num_workers"`
	MaxEvents  int  `json:"max_events"`
	NoDB       bool `json:"no_db"`

	// Paths and acquisition identifiers.
	BasePath     string   `json:"base_path"`
	SavePath     string   `json:"save_path"`
	TemplateFile string   `json:"template_file"`
	FileType     string   `json:"file_type"`
	Series       []uint64 `json:"series"`
	Channels     []string `json:"channels"`
	Detector     string   `json:"detector"`
	SampleRate   float64  `json:"sample_rate"`
	ConvToAmps   float64  `json:"conv_to_amps"`

	// RQ feature windows (sample indices) and cutoffs.
	BaselineStart int     `json:"baseline_start"`
	BaselineStop  int     `json:"baseline_stop"`
	IntegralStart int     `json:"integral_start"`
	IntegralStop  int     `json:"integral_stop"`
	MaxMinStart   int     `json:"maxmin_start"`
	MaxMinStop    int     `json:"maxmin_stop"`
	OFWindowLow   int     `json:"of_window_low"`
	OFWindowHigh  int     `json:"of_window_high"`
	Chi2FCutoff   float64 `json:"chi2_fcutoff"`
	SaveRQ        bool    `json:"save_rq"`

	// Cut database (selection-mask store).
	Host      string `json:"host"`
	User      string `json:"user"`
	Passwd    string `json:"pass"`
	DBName    string `json:"dbname"`
	DatasetID string `json:"dataset_id"`
	CutName   string `json:"cut_name"`

	// Simulation.
	Seed         uint64             `json:"seed"`
	RQFile       string             `json:"rq_file"`
	OutputPath   string             `json:"output_path"`
	Amplitudes   DistributionConfig `json:"amplitudes"`
	TimeDelays   DistributionConfig `json:"tdelays"`
	RelCal       []float64          `json:"relcal"`
	TruthSidecar bool               `json:"truth_sidecar"`

	// IV/dIdV sweep.
	SweepPath   string `json:"sweep_path"`
	SweepOutput string `json:"sweep_output"`
	IsDidv      bool   `json:"is_didv"`
	IsHV        bool   `json:"is_hv"`
	PlotPath    string `json:"plot_path"`

	CompressionLevel int `json:"compression_level"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

func LoadConfiguration(filename string) (Configuration, error) {
	var config Configuration

	// Set default values
	config.MaxEvents = 1000000000
	config.Verbosity = 0
	config.NumWorkers = 1
	config.FileType = "rqd"
	config.SampleRate = 625e3
	config.ConvToAmps = 1
	config.BaselineStart = 0
	config.BaselineStop = 16000
	config.IntegralStart = 0
	config.IntegralStop = 32500
	config.MaxMinStart = 0
	config.MaxMinStop = 32500
	config.OFWindowLow = 15500
	config.OFWindowHigh = 17000
	config.Chi2FCutoff = 16000
	config.Host = "tesdaq.phys.local"
	config.User = "rqreader"
	config.Passwd = "readonly"
	config.DBName = "TESRQ"
	config.NoDB = false
	config.SaveRQ = true
	config.CompressionLevel = 4
	config.Amplitudes = DistributionConfig{Family: "uniform", Params: []float64{0, 6e-7}}
	config.TimeDelays = DistributionConfig{Family: "gaussian", Params: []float64{0, 16e-6}}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func PrintConfiguration(config Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Base path: %s", config.BasePath), "config")
	logger.Info(fmt.Sprintf("Save path: %s", config.SavePath), "config")
	logger.Info(fmt.Sprintf("Template file: %s", config.TemplateFile), "config")
	logger.Info(fmt.Sprintf("File type: %s", config.FileType), "config")
	logger.Info(fmt.Sprintf("Series: %v", config.Series), "config")
	logger.Info(fmt.Sprintf("Channels: %v", config.Channels), "config")
	logger.Info(fmt.Sprintf("Detector: %s", config.Detector), "config")
	logger.Info(fmt.Sprintf("Sample rate: %g Hz", config.SampleRate), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Save RQs: %t", config.SaveRQ), "config")
}
