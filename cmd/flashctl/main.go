package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/librescoot/flashctl/pkg/telemetry"
	"github.com/librescoot/flashctl/pkg/transport"
	"github.com/librescoot/flashctl/pkg/updater"
)

var (
	serialDevice = flag.String("port", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	fragmentSize = flag.Int("fragment-size", 1024, "Upload fragment size in bytes")
	loadAddr     = flag.Uint("load-addr", 0x08004000, "Application load address stored with the loaded image (not sent to the device)")
	timeoutMS    = flag.Int("timeout-ms", 3000, "Per-command reply timeout in milliseconds")
	retryCount   = flag.Int("retry-count", 3, "Transport-level attempts per command, including the first")
	firmwarePath = flag.String("file", "", "Path to the firmware image to upload")

	redisAddr = flag.String("redis-addr", "", "Redis server address for fleet status mirroring (disabled if empty)")
	redisPass = flag.String("redis-pass", "", "Redis password")
	redisDB   = flag.Int("redis-db", 0, "Redis database number")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("flashctl starting")
	log.Printf("serial device: %s @ %d baud", *serialDevice, *baudRate)

	if *firmwarePath == "" {
		log.Fatalf("missing required -file flag")
	}

	port, err := transport.OpenSerial(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	defer port.Close()

	cfg := transport.Config{TimeoutMS: *timeoutMS, RetryCount: *retryCount}
	u := updater.New(port, cfg, nil)
	defer u.Close()

	var mirror *telemetry.Mirror
	if *redisAddr != "" {
		client, err := telemetry.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		mirror = telemetry.NewMirror(client, nil)
		log.Printf("mirroring status to redis at %s", *redisAddr)
	}

	events := u.Events()
	var mirrorEvents chan updater.Event
	if mirror != nil {
		mirrorEvents = make(chan updater.Event, 128)
		go mirror.Run(mirrorEvents)
	}

	var bar *progressbar.ProgressBar
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if mirrorEvents != nil {
				select {
				case mirrorEvents <- ev:
				default:
				}
			}
			switch ev.Kind {
			case updater.EventLog:
				log.Printf("%s", ev.Message)
			case updater.EventError:
				log.Printf("error: %s", ev.Message)
			case updater.EventStatusChange:
				log.Printf("status: %s", ev.Status)
			case updater.EventProgress:
				if bar == nil {
					bar = progressbar.NewOptions(ev.ProgressTotal,
						progressbar.OptionSetWidth(50),
						progressbar.OptionSetDescription("uploading"),
						progressbar.OptionSetRenderBlankState(true),
					)
				}
				bar.Describe(ev.ProgressDesc)
				_ = bar.Set(ev.ProgressIndex)
			case updater.EventFirmwareLoaded:
				if ev.Image != nil {
					log.Printf("loaded %s (%d bytes, digest %s)", ev.Image.Name, len(ev.Image.Data), ev.Image.Digest)
				}
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("shutting down...")
		u.Stop()
		u.Close()
	}()

	if _, err := u.LoadFirmware(*firmwarePath, *fragmentSize, uint32(*loadAddr)); err != nil {
		log.Fatalf("failed to load firmware: %v", err)
	}

	if result, err := u.EnterBoot(); err != nil || !result.Success {
		log.Fatalf("failed to enter boot mode: err=%v success=%v summary=%q", err, result.Success, result.ErrorSummary)
	}

	result, err := u.UploadAll()
	if err != nil || !result.Success {
		log.Fatalf("upload failed: err=%v success=%v summary=%q", err, result.Success, result.ErrorSummary)
	}

	report := updater.NewSideReport(result, time.Now())
	if encoded, err := report.Encode(); err != nil {
		log.Printf("failed to encode side report: %v", err)
	} else if err := os.WriteFile(*firmwarePath+".report.cbor", encoded, 0o644); err != nil {
		log.Printf("failed to write side report: %v", err)
	}

	if result, err := u.RunApp(); err != nil || !result.Success {
		log.Fatalf("failed to start application: err=%v success=%v summary=%q", err, result.Success, result.ErrorSummary)
	}

	log.Printf("update complete")
	if bar != nil {
		_ = bar.Finish()
	}
}
