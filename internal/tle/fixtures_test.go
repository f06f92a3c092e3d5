package tle

import (
	"io"
	"log/slog"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"

	// A day later than issLine1.
	issNewerLine1 = "1 25544U 98067A   25046.51719907  .00018126  00000+0  32390-3 0  9993"
	issNewerLine2 = "2 25544  51.6405 186.9398 0003502 130.1155 230.0165 15.49896417495260"

	cssName  = "CSS (TIANHE)"
	cssLine1 = "1 48274U 21035A   25045.52418981  .00025376  00000+0  29811-3 0  9996"
	cssLine2 = "2 48274  41.4658 173.0537 0004960 318.0232  42.0225 15.60567553214543"
)

var (
	issEpoch      = time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)
	issNewerEpoch = time.Date(2025, 2, 15, 12, 24, 46, 0, time.UTC)

	stationsFeed = cssName + "\n" + cssLine1 + "\n" + cssLine2 + "\n" +
		issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
	cssOnlyFeed  = cssName + "\n" + cssLine1 + "\n" + cssLine2 + "\n"
	issNewerFeed = issName + "\r\n" + issNewerLine1 + "\r\n" + issNewerLine2 + "\r\n"
)
