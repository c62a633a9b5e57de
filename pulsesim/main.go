package main

import (
	"flag"
	"fmt"
	"os"

	sqlx "github.com/jmoiron/sqlx"
	rqproc "github.com/tes-exp/rqproc_go/pkg"
)

var dbConn *sqlx.DB
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
	if len(configuration.Series) != 1 {
		logger.Error("Simulation runs over exactly one series")
		os.Exit(1)
	}
	if len(configuration.Channels) == 0 {
		logger.Error("No channels configured")
		os.Exit(1)
	}
	series := configuration.Series[0]
	// Pulses go into the first configured channel.
	channel := configuration.Channels[0]

	bundle, err := rqproc.LoadTemplateBundle(configuration.TemplateFile,
		[]string{channel}, configuration.Detector)
	if err != nil {
		message := fmt.Errorf("Error loading template bundle: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	entry, err := bundle.Get(channel, configuration.Detector)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	sim := rqproc.NewPulseSim(entry.Template, configuration.Seed)
	if err := sim.ConfigureParameter("amplitudes",
		configuration.Amplitudes.Family, configuration.Amplitudes.Params); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if err := sim.ConfigureParameter("tdelays",
		configuration.TimeDelays.Family, configuration.TimeDelays.Params); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if len(configuration.RelCal) > 0 {
		sim.SetRelCal(configuration.RelCal)
	}

	table, mask, err := loadSelection()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	opts := rqproc.SimOptions{
		BasePath:         configuration.BasePath,
		OutputDir:        configuration.OutputPath,
		FileType:         configuration.FileType,
		Series:           series,
		Channel:          channel,
		Channels:         configuration.Channels,
		Table:            table,
		Mask:             mask,
		TruthSidecar:     configuration.TruthSidecar,
		CompressionLevel: configuration.CompressionLevel,
	}
	if err := sim.Run(opts); err != nil {
		message := fmt.Errorf("Error simulating series %d: %w", series, err)
		logger.Error(message.Error())
		os.Exit(1)
	}
}

// loadSelection fetches the RQ table and, unless the database is disabled,
// the cut mask selecting the events to inject into.
func loadSelection() (*rqproc.RQTable, []bool, error) {
	if configuration.RQFile == "" {
		if !configuration.NoDB {
			return nil, nil, fmt.Errorf("a cut needs an RQ file to align with; set rq_file or no_db")
		}
		return nil, nil, nil
	}

	table, err := rqproc.ReadRQTable(configuration.RQFile,
		configuration.Channels, configuration.Detector)
	if err != nil {
		return nil, nil, fmt.Errorf("Error reading RQ file: %w", err)
	}
	if configuration.NoDB {
		return table, nil, nil
	}

	dbConn, err = rqproc.ConnectToDatabase(configuration.User, configuration.Passwd,
		configuration.Host, configuration.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("Error connecting to database: %w", err)
	}
	defer dbConn.Close()

	mask, err := rqproc.LoadCut(dbConn, configuration.DatasetID, configuration.CutName)
	if err != nil {
		return nil, nil, fmt.Errorf("Error loading cut: %w", err)
	}
	return table, mask, nil
}
