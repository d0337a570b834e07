/*
Package dedupe contains the membership filter used to spot repeated file digests.

The Filter is a classic bloom filter sized once from an expected capacity (n) and
a target false positive rate (p):

	m = ceil(-n * ln(p) / ln(2)^2)   bits
	k = round(ln(2) * m / n)         probes per item

Probe positions come from two xxHash64 values of the item (unseeded and seeded)
combined by double hashing, index_i = (h1 + i*h2) mod m, so only two hashes are
computed no matter how large k is.

Once added, an item is never forgotten, so there are no false negatives. An item
that was never added can still be reported as present (a false positive), and
callers that need certainty must confirm a hit by other means.

Examples (bits of RAM needed):

* 1mil files, p=1:1mil
** 3.6MB, k=20

* 10mil files, p=1:10mil (default)
** 42MB, k=23

* 100mil files, p=1:100mil
** 480MB, k=27

Exceeding the configured capacity does not break anything, the false positive
rate just climbs. Truthiness (the fraction of set bits) is exported as a gauge
so saturation can be watched during long scans.

The filter is not safe for concurrent writers. It expects exactly one goroutine
to call Add and Contains. Truthiness and Count may be read from anywhere.
*/
package dedupe
