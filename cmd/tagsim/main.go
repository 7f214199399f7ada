package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"

	"github.com/robotalks/tagrelay/pkg/serial"
	"github.com/robotalks/tagrelay/pkg/tagsim"
)

var (
	port       = "/dev/ttyUSB1"
	baud       = serial.DefaultBaudRate
	tcpAddr    string
	outputJSON bool
)

func init() {
	if val := os.Getenv("TAGSIM_PORT"); val != "" {
		port = val
	}
	flag.StringVar(&port, "port", port, "Serial port to write frames to.")
	flag.IntVar(&baud, "baud", baud, "Serial baud rate.")
	flag.StringVar(&tcpAddr, "tcp", tcpAddr, "Write frames to a TCP address instead of a serial port.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print sent tags in JSON.")
}

func open() (io.WriteCloser, error) {
	if tcpAddr != "" {
		return net.Dial("tcp", tcpAddr)
	}
	return serial.Open(serial.Config{Device: port, BaudRate: baud})
}

func main() {
	flag.Parse()
	out, err := open()
	if err != nil {
		log.Fatalln(err)
	}
	defer out.Close()

	sh := tagsim.NewShell(tagsim.New(out))
	sh.OutputJSON = outputJSON
	if err := sh.Run(flag.Args()...); err != nil {
		log.Fatalln(err)
	}
}
