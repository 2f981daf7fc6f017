package engine

import (
	"math/rand/v2"

	"github.com/rs/zerolog"
)

var banners = []string{
	`
   ____      _        _           _
  / ___|__ _| |_ __ _| |_   _ ___| |_
 | |   / _' | __/ _' | | | | / __| __|
 | |__| (_| | || (_| | | |_| \__ \ |_
  \____\__,_|\__\__,_|_|\__, |___/\__|
                        |___/`,
	`
  +-+-+-+-+-+-+-+-+
  |C|a|t|a|l|y|s|t|
  +-+-+-+-+-+-+-+-+`,
}

// pickBanner returns one of the welcome banners at random.
func pickBanner() string {
	if len(banners) == 0 {
		return "C a t a l y s t"
	}
	return banners[rand.IntN(len(banners))]
}

func logBanner(logger zerolog.Logger) {
	logger.Info().Msg("\n" + pickBanner() + "\n")
	logger.Info().Msg("Welcome to the Catalyst integration!")
	logger.Info().Msg("Hang on as your environment is provisioned...")
}
