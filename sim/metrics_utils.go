package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// SaveResults writes the run summary as indented JSON to fileName.
func (m *Metrics) SaveResults(fileName string) error {
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", fileName, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logrus.Errorf("Error closing file %s: %v", fileName, closeErr)
		}
	}()

	writer := bufio.NewWriter(file)
	data, err := json.MarshalIndent(m.Summary(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", fileName, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", fileName, err)
	}
	logrus.Debugf("Wrote run summary to %s", fileName)
	return nil
}
