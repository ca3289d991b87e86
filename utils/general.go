package utils

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Pretty print JSON
func PrettyJSON(key string, val interface{}, canPrint bool) (jsonStr string, err error) {
	jsonBytes, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		log.Printf("JSON_ENCODEERR: Error encoding json: (%v %v)\n", val, err)
		return "", err
	}

	jsonStr = string(jsonBytes)
	if canPrint {
		log.Printf("KEY: %s, VALUE: %v\n", key, jsonStr)
	}
	return jsonStr, nil
}

func ComputeDuration(start time.Time) float64 {
	end := time.Now()
	duration := end.Sub(start)
	return duration.Seconds()
}

// Print err on return
func ReturnErr(prefix string, item string, err error) {
	if err != nil {
		log.Printf("%s: (Item %s) %v", prefix, item, err)
	}
}

// Md5Hash returns the hex digest of a string
func Md5Hash(val string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(val)))
}

func BatchProcessItems(items []string, batchSize int, fn func([]string) error) {
	total := len(items)
	numBatches := (total / batchSize) + 1
	for i := 0; i < numBatches; i++ {
		start := i * batchSize
		end := start + batchSize
		if end >= total {
			end = total
		}
		if start >= end {
			break
		}
		batch := items[start:end]
		err := fn(batch)
		if err != nil {
			PrettyJSON("BATCH_PROCESSING", batch, true)
			log.Printf("Batch processing failed with error %v\n", err)
			continue
		}
		log.Printf("BATCH_PROCESSING: Batch: %d, Items: %d/%d\n", i+1, end, total)
	}
}

// Convert bytes to human readable form
func HumanReadable(num uint64) string {
	unit := "Bytes"
	val := float64(num)

	if val > 1024 {
		val = val / 1024
		unit = "KB"
	}

	if val > 1024 {
		val = val / 1024
		unit = "MB"
	}

	if val > 1024 {
		val = val / 1024
		unit = "GB"
	}

	res := fmt.Sprintf("%.2f %s", val, unit)
	return res
}
