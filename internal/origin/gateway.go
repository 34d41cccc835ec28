// -------------------------------------------------------------------------------
// Origin Gateway - Routing Pipeline
//
// Author: Alex Freidah
//
// Ties the pure routing components into a single pipeline: host classification,
// incoming URL parsing, hash validation, shard and container derivation, and
// outgoing URL synthesis. The gateway is an immutable snapshot built once from
// configuration at startup; every method is a pure function of its inputs and
// may be called concurrently without locking.
// -------------------------------------------------------------------------------

package origin

// Options collects the configuration the gateway is built from. All values
// are fixed at load time.
type Options struct {
	DBHosts         []string
	CDNHostSuffixes []string
	Patterns        []PatternConfig
	Formats         FormatConfig
	TTL             TTLPolicy
	HashPathSuffix  string
	ContainerCount  int
	ShardCount      int
	SigningSecret   string
	TokenLength     int
}

// Gateway is the immutable routing core.
type Gateway struct {
	router         *AccountRouter
	patterns       *PatternSet
	synth          *Synthesizer
	ttl            TTLPolicy
	hashSuffix     string
	containerCount int
	shardCount     int
}

// CDNRoute is the complete routing decision for one CDN-plane URL.
type CDNRoute struct {
	Hash           string
	ObjectName     string
	PatternKey     string
	HashMod        int
	ContainerIndex int
}

// Listing reports whether the request addressed the container itself.
func (r CDNRoute) Listing() bool { return r.ObjectName == "" }

// NewGateway validates the options and builds the routing core. Any error
// here is a configuration error and must abort startup.
func NewGateway(opts Options) (*Gateway, error) {
	if len(opts.CDNHostSuffixes) == 0 {
		return nil, configErrorf("origin_cdn_host_suffixes", "at least one suffix is required")
	}
	if opts.HashPathSuffix == "" {
		return nil, configErrorf("hash_path_suffix", "a hash path suffix is required")
	}
	if opts.ContainerCount <= 0 {
		return nil, configErrorf("number_hash_id_containers", "must be positive, got %d", opts.ContainerCount)
	}
	if opts.ShardCount <= 0 {
		return nil, configErrorf("number_dns_shards", "must be positive, got %d", opts.ShardCount)
	}
	if err := opts.TTL.Validate(); err != nil {
		return nil, err
	}
	patterns, err := CompilePatterns(opts.Patterns)
	if err != nil {
		return nil, err
	}
	synth, err := NewSynthesizer(opts.Formats, NewSigner(opts.SigningSecret, opts.TokenLength))
	if err != nil {
		return nil, err
	}
	return &Gateway{
		router:         NewAccountRouter(opts.DBHosts, opts.CDNHostSuffixes),
		patterns:       patterns,
		synth:          synth,
		ttl:            opts.TTL,
		hashSuffix:     opts.HashPathSuffix,
		containerCount: opts.ContainerCount,
		shardCount:     opts.ShardCount,
	}, nil
}

// Classify returns the request plane for a Host header.
func (g *Gateway) Classify(host string) Plane { return g.router.Classify(host) }

// ParseIncoming recognizes a CDN-plane URL and derives the full routing
// decision. A signed token prefix on the hash is stripped before validation.
// Fails with ErrUnrecognizedURL or ErrInvalidHash.
func (g *Gateway) ParseIncoming(rawURL string) (CDNRoute, error) {
	parsed, err := g.patterns.Parse(rawURL)
	if err != nil {
		return CDNRoute{}, err
	}
	hash, err := ValidateHash(StripToken(parsed.Hash))
	if err != nil {
		return CDNRoute{}, err
	}
	hashMod, err := HashMod(hash)
	if err != nil {
		return CDNRoute{}, err
	}
	idx, err := ContainerIndex(hash, g.containerCount)
	if err != nil {
		return CDNRoute{}, err
	}
	return CDNRoute{
		Hash:           hash,
		ObjectName:     parsed.ObjectName,
		PatternKey:     parsed.PatternKey,
		HashMod:        hashMod,
		ContainerIndex: idx,
	}, nil
}

// SynthesizeURLs builds the outgoing URL set for a hash under the given
// method and format tag.
func (g *Gateway) SynthesizeURLs(hash, method, formatTag string) (map[string]string, error) {
	return g.synth.Synthesize(hash, method, formatTag)
}

// HashPath derives the content hash for an account/container pair using the
// deployment's secret suffix.
func (g *Gateway) HashPath(account, container string) string {
	return HashPath(account, container, g.hashSuffix)
}

// HashContainer returns the tracking container index for a hash.
func (g *Gateway) HashContainer(hash string) (int, error) {
	return ContainerIndex(hash, g.containerCount)
}

// TTL returns the global cache lifetime policy.
func (g *Gateway) TTL() TTLPolicy { return g.ttl }

// ContainerCount returns the immutable hash container count.
func (g *Gateway) ContainerCount() int { return g.containerCount }

// ShardCount returns the configured number of DNS shards. Shard selection
// from HashMod is a deployment concern; the gateway only carries the number.
func (g *Gateway) ShardCount() int { return g.shardCount }

// HashSuffixDigest returns the hash of the secret path suffix, suitable for
// fingerprinting the deployment without exposing the secret.
func (g *Gateway) HashSuffixDigest() string {
	return HashPath("", "", g.hashSuffix)
}
