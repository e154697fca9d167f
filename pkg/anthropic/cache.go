package anthropic

// BuildCachedSystemBlocks constructs a system block with a cache breakpoint.
// The generators send the same system prompt for every prospect in a run, so
// all calls after the first read it from the prompt cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
