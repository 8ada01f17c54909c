package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/quadkey-index/internal/ingest"
	"github.com/mohammed-shakir/quadkey-index/internal/ingest/kafkaproducer"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	fmt.Println("redis PING ok")
	return nil
}

// walk scatters every point within about one tile of the start each round, so a nearby
// query at the start keeps finding them.
func walk(pub *kafkaproducer.Publisher, layer string, points, rounds int, lat, lon float64, precision uint) error {
	res := quadkey.GroundResolution(lat, precision) * quadkey.TileSize
	// degrees of latitude per tile, roughly
	step := res / 111_320

	for r := range rounds {
		for i := range points {
			ev := ingest.Event{
				Version: 1,
				Op:      ingest.OpUpsert,
				Layer:   layer,
				ID:      fmt.Sprintf("p-%04d", i),
				Lat:     lat + (rand.Float64()*2-1)*step,
				Lon:     lon + (rand.Float64()*2-1)*step,
				TS:      time.Now().UTC(),
			}
			if _, _, err := pub.Publish(ev); err != nil {
				return fmt.Errorf("round %d point %d: %w", r, i, err)
			}
		}
		fmt.Printf("round %d: published %d events\n", r+1, points)
	}
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	layer := flag.String("layer", "demo", "layer to publish points into")
	points := flag.Int("points", 50, "number of distinct points")
	rounds := flag.Int("rounds", 10, "updates per point")
	lat := flag.Float64("lat", 59.3293, "start latitude")
	lon := flag.Float64("lon", 18.0686, "start longitude")
	precision := flag.Uint("precision", 16, "index precision used to size the random walk")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "point-updates")

	if err := testRedis(ctx, redisAddr); err != nil {
		fmt.Println("Redis error:", err)
		return 1
	}

	pub, prod, err := kafkaproducer.Dial(brokers, topic)
	if err != nil {
		fmt.Println("Kafka error:", err)
		return 1
	}
	defer func() { _ = prod.Close() }()

	if err := walk(pub, *layer, *points, *rounds, *lat, *lon, *precision); err != nil {
		fmt.Println("Publish error:", err)
		return 1
	}
	fmt.Println("All events published")
	return 0
}
