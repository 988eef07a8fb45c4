package sandbox

// assertionPrelude is the assertion library injected into every sandbox
// before the user script runs. Matchers throw AssertionError with a message
// embedding both expected and actual values; toContain on a non-string
// receiver throws a TypeError instead.
const assertionPrelude = `
class AssertionError extends Error {
	constructor(message) {
		super(message);
		this.name = 'AssertionError';
	}
}

function expect(received) {
	return {
		toBe(expected) {
			if (received !== expected) {
				throw new AssertionError(
					'Expected ' + JSON.stringify(received) + ' to be ' + JSON.stringify(expected));
			}
		},
		toBeTruthy() {
			if (!received) {
				throw new AssertionError(
					'Expected ' + JSON.stringify(received) + ' to be truthy');
			}
		},
		toContain(expected) {
			if (typeof received !== 'string') {
				throw new TypeError(
					'toContain expected a string but received ' + typeof received);
			}
			if (received.indexOf(expected) === -1) {
				throw new AssertionError(
					'Expected ' + JSON.stringify(received) + ' to contain ' + JSON.stringify(expected));
			}
		},
		toBeGreaterThan(expected) {
			if (!(received > expected)) {
				throw new AssertionError(
					'Expected ' + JSON.stringify(received) + ' to be greater than ' + JSON.stringify(expected));
			}
		}
	};
}
`
