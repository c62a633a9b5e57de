package main

import (
	"flag"
	"fmt"
	"os"

	rqproc "github.com/tes-exp/rqproc_go/pkg"
)

var configuration rqproc.Configuration

var logger rqproc.SlogLogger

func init() {
	logger = rqproc.NewLogger(os.Stdout, os.Stderr)
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = rqproc.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	rqproc.SetConfiguration(configuration)
	rqproc.SetLogger(logger)

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", *configFilename), "main")
		rqproc.PrintConfiguration(configuration, logger)
	}
	if len(configuration.Channels) == 0 {
		logger.Error("No channels configured")
		os.Exit(1)
	}

	opts := rqproc.SweepOptions{
		Channels: configuration.Channels,
		FileType: configuration.FileType,
		IsDidv:   configuration.IsDidv,
		IsHV:     configuration.IsHV,
	}
	records, err := rqproc.ProcessIVSweep(configuration.SweepPath, opts)
	if err != nil {
		message := fmt.Errorf("Error processing sweep: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}

	// An incomplete sweep is reported but still reduced and saved.
	if err := rqproc.CheckBiasPairs(records); err != nil {
		logger.Error(fmt.Sprintf("Bias pairing check failed: %v", err))
	}

	records, removed := rqproc.RemoveBadRecords(records)
	if removed > 0 {
		logger.Info(fmt.Sprintf("Removed %d bad sweep records", removed), "main")
	}

	if err := rqproc.SaveIVRecords(records, configuration.SweepOutput,
		configuration.CompressionLevel); err != nil {
		message := fmt.Errorf("Error saving sweep table: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}

	if configuration.PlotPath != "" {
		if err := rqproc.PlotIVCurves(records, configuration.PlotPath); err != nil {
			message := fmt.Errorf("Error plotting IV curves: %w", err)
			logger.Error(message.Error())
			os.Exit(1)
		}
	}
}
