// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package line

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/usedbytes/bot_matrix/datalink"
)

const (
	NumSensors = 13
	// Sensor spacing, mm
	Pitch = 8.0

	Endpoint = 0x13
)

// Position of each element across the robot, mm. The two outer elements
// are weighted out: they see both branches at a fork.
var positions = [NumSensors]float64{
	0, 5 * Pitch, 4 * Pitch, 3 * Pitch, 2 * Pitch, 1 * Pitch, 0,
	-1 * Pitch, -2 * Pitch, -3 * Pitch, -4 * Pitch, -5 * Pitch, 0,
}

type Report struct {
	Raw [NumSensors]uint16
}

type Sensor struct {
	raw []float64
}

func NewSensor() *Sensor {
	return &Sensor{
		raw: make([]float64, NumSensors),
	}
}

// Receive handles line reports from the datalink.
func (s *Sensor) Receive(p *datalink.Packet) interface{} {
	if p.Endpoint != Endpoint {
		return nil
	}

	rep := &Report{}
	err := binary.Read(bytes.NewReader(p.Data), binary.LittleEndian, &rep.Raw)
	if err != nil {
		return errors.Wrap(err, "line report")
	}

	for i, v := range rep.Raw {
		s.raw[i] = float64(v)
	}

	return rep
}

// Raw returns the latest ADC reading from each element.
func (s *Sensor) Raw() []float64 {
	return append([]float64(nil), s.raw...)
}

type Calibration struct {
	Black []float64
	White []float64
}

// Normalise scales raw readings so that black is 0 and white is 1.
func (c *Calibration) Normalise(raw []float64) []float64 {
	norm := make([]float64, len(raw))
	for i, v := range raw {
		span := c.White[i] - c.Black[i]
		if span == 0 {
			continue
		}
		norm[i] = (v - c.Black[i]) / span
	}

	return norm
}

// Centroid is the weighted position of the line under the sensor, mm.
func (c *Calibration) Centroid(raw []float64) float64 {
	sum := 0.0
	for i, v := range c.Normalise(raw) {
		sum += v * positions[i]
	}

	return sum / float64(NumSensors-1)
}

// LoadCalibration reads a calibration file: one "black,white" line per
// element. A missing file is returned as an error satisfying
// os.IsNotExist, and means the sensor has never been calibrated.
func LoadCalibration(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cal := &Calibration{}

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) != 2 {
			return nil, errors.Errorf("%s:%d: expected 'black,white', got '%s'", path, n, text)
		}

		black, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, n)
		}
		white, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, n)
		}

		cal.Black = append(cal.Black, black)
		cal.White = append(cal.White, white)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, path)
	}

	if len(cal.Black) != NumSensors {
		return nil, errors.Errorf("%s: expected %d elements, got %d", path, NumSensors, len(cal.Black))
	}

	return cal, nil
}

func SaveCalibration(path string, cal *Calibration) error {
	var b strings.Builder
	for i := range cal.Black {
		fmt.Fprintf(&b, "%s,%s\n",
			strconv.FormatFloat(cal.Black[i], 'f', -1, 64),
			strconv.FormatFloat(cal.White[i], 'f', -1, 64))
	}

	return errors.Wrap(os.WriteFile(path, []byte(b.String()), 0644), "saving calibration")
}
