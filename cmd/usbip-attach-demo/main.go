// Command usbip-attach-demo dials a USB/IP server and submits a single
// GET_DESCRIPTOR control URB on endpoint 0 of the device selected by
// -devid, printing whatever comes
// back. It exists for manual protocol testing against a real or stub
// server; it does not perform the OP_REQ_IMPORT/OP_REP_IMPORT handshake
// (spec.md Non-goals) and assumes the devid is already known.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	usbip "github.com/behrlich/go-usbip"
	"github.com/behrlich/go-usbip/internal/logging"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:3240", "USB/IP server address")
		devID   = flag.Uint("devid", 1, "busnum<<16|devnum of the remote device")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host := usbip.NewMockHost()

	sess, err := usbip.Dial(ctx, *addr, uint32(*devID), host, usbip.WithLogger(logger))
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer sess.Detach()

	logger.Info("session established", "addr", *addr, "devid", *devID)

	req := usbip.URB{
		Function:       usbip.FunctionControlTransfer,
		Endpoint:       0,
		EndpointType:   usbip.EndpointControl,
		TransferBuffer: make([]byte, 18),
		Handle:         "demo-get-descriptor",
	}
	req.Setup.RequestType = 0x80 // device-to-host, standard, device recipient
	req.Setup.Request = 0x06     // GET_DESCRIPTOR
	req.Setup.Value = 0x0100     // descriptor type DEVICE, index 0
	req.Setup.Length = 18

	outcome, err := sess.SubmitURB(&req)
	if err != nil {
		log.Fatalf("submit urb: %v", err)
	}
	logger.Info("urb submitted", "outcome", outcome)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("interrupted, detaching")
	case <-time.After(5 * time.Second):
		for _, c := range host.Completions() {
			fmt.Printf("completion: handle=%v canceled=%v status=%v actual_len=%d\n", c.Handle, c.Canceled, c.Status, c.ActualLength)
		}
	}
}
